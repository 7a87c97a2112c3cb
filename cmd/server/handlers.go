package main

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
	"github.com/mohan-palisetti/bitemporaldb/model"
)

// EmployeeHandler serves one bitemporal collection of employees.
type EmployeeHandler struct {
	engine    *bitemporal.Engine[model.Employee]
	startTime time.Time
}

func NewEmployeeHandler(engine *bitemporal.Engine[model.Employee]) *EmployeeHandler {
	return &EmployeeHandler{engine: engine, startTime: time.Now()}
}

// writeRequest is the body of every write: the payload plus the valid-time
// window it describes. An absent valid_to means "until further notice".
type writeRequest struct {
	Employee  model.Employee `json:"employee"`
	ValidFrom time.Time      `json:"valid_from"`
	ValidTo   *time.Time     `json:"valid_to"`
}

func (r writeRequest) period() (bitemporal.Period, error) {
	if r.ValidTo == nil {
		return bitemporal.Since(r.ValidFrom), nil
	}
	return bitemporal.NewPeriod(r.ValidFrom, *r.ValidTo)
}

func (h *EmployeeHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Store handles POST /employees.
func (h *EmployeeHandler) Store(c *fiber.Ctx) error {
	var req writeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body: "+err.Error())
	}
	valid, err := req.period()
	if err != nil {
		return err
	}

	id, err := h.engine.Store(c.Context(), req.Employee, valid)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"identity": id})
}

// UpdateLogical handles PUT /employees/:id, the "the world changed" write.
func (h *EmployeeHandler) UpdateLogical(c *fiber.Ctx) error {
	return h.supersede(c, h.engine.UpdateLogical)
}

// Update handles PATCH /employees/:id, the "the data was wrong" write. Same
// engine algorithm, kept as its own route so access logs tell the two apart.
func (h *EmployeeHandler) Update(c *fiber.Ctx) error {
	return h.supersede(c, h.engine.Update)
}

type writeOp func(ctx context.Context, id uuid.UUID, payload model.Employee, valid bitemporal.Period) error

func (h *EmployeeHandler) supersede(c *fiber.Ctx, write writeOp) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed identity: "+err.Error())
	}

	var req writeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body: "+err.Error())
	}
	valid, err := req.period()
	if err != nil {
		return err
	}

	if err := write(c.Context(), id, req.Employee, valid); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Find handles GET /employees/:id. The valid and system query parameters
// pin the two moments as RFC3339 stamps; either defaults to now.
func (h *EmployeeHandler) Find(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed identity: "+err.Error())
	}

	at := bitemporal.TemporalContext{}
	if at.ValidMoment, err = queryMoment(c, "valid"); err != nil {
		return err
	}
	if at.SystemMoment, err = queryMoment(c, "system"); err != nil {
		return err
	}

	rec, ok, err := h.engine.FindLogical(c.Context(), id, at)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no assertion at that point")
	}
	return c.JSON(rec)
}

// History handles GET /employees/:id/history: the physical audit trail,
// shadowed originals included.
func (h *EmployeeHandler) History(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed identity: "+err.Error())
	}

	records, err := h.engine.History(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"records": records, "count": len(records)})
}

func queryMoment(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, name+" must be RFC3339: "+err.Error())
	}
	return t, nil
}
