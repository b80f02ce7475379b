package http

import (
	"errors"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/proto"
	"github.com/fuelport/notify-server/internal/store"
)

// ErrorResponse is the JSON error body for REST endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIHandlers is the collaborator surface of the routing core: CRUD endpoints
// that persist a state change and then route a notification to the affected
// roles or users.
type APIHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewAPIHandlers builds the REST handler set.
func NewAPIHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{hub: hub, store: st, log: logger}
}

// ListFuelPrices handles GET /api/v1/fuel-prices.
func (h *APIHandlers) ListFuelPrices(c *gin.Context) {
	prices, err := h.store.ListFuelPrices(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list fuel prices")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	out := make([]proto.FuelPriceUpdate, 0, len(prices))
	for _, p := range prices {
		out = append(out, fuelPriceUpdate(p))
	}
	c.JSON(stdhttp.StatusOK, out)
}

type updateFuelPriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}

// UpdateFuelPrice handles PUT /api/v1/fuel-prices/:type. The new price is
// broadcast to storefront users and fuel pumps.
func (h *APIHandlers) UpdateFuelPrice(c *gin.Context) {
	var req updateFuelPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "price must be a positive number"})
		return
	}

	price, err := h.store.UpsertFuelPrice(c.Request.Context(), c.Param("type"), req.Price)
	if err != nil {
		h.log.Error().Err(err).Msg("upsert fuel price")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	event := &core.Event{Name: core.EventFuelPriceUpdate, Payload: fuelPriceUpdate(*price)}
	h.hub.RouteToRoom(core.RoleRoom(core.RoleUser), event)
	h.hub.RouteToRoom(core.RoleRoom(core.RoleFuelPump), event)

	c.JSON(stdhttp.StatusOK, fuelPriceUpdate(*price))
}

type createOrderRequest struct {
	UserID   string  `json:"userId" binding:"required"`
	FuelType string  `json:"fuelType" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Address  string  `json:"address" binding:"required"`
}

// CreateOrder handles POST /api/v1/orders. Admins are notified of the new
// order so they can confirm and assign it.
func (h *APIHandlers) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	order, err := h.store.CreateOrder(c.Request.Context(), req.UserID, req.FuelType, req.Quantity, req.Address)
	if err != nil {
		h.log.Error().Err(err).Msg("create order")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	h.hub.RouteToRoom(core.RoleRoom(core.RoleAdmin), &core.Event{
		Name:    core.EventOrderPlaced,
		Payload: orderUpdate(order),
	})

	c.JSON(stdhttp.StatusCreated, orderResponse(order))
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *APIHandlers) GetOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	order, err := h.store.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.orderError(c, err, "get order")
		return
	}
	c.JSON(stdhttp.StatusOK, orderResponse(order))
}

type assignOrderRequest struct {
	DeliveryBoyID string `json:"deliveryBoyId" binding:"required"`
}

// AssignOrder handles PUT /api/v1/orders/:id/assign. The assigned delivery
// boy and the ordering user are both notified.
func (h *APIHandlers) AssignOrder(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req assignOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "deliveryBoyId is required"})
		return
	}

	order, err := h.store.AssignOrder(c.Request.Context(), id, req.DeliveryBoyID)
	if err != nil {
		h.orderError(c, err, "assign order")
		return
	}

	h.hub.RouteToUser(order.DeliveryBoyID, &core.Event{
		Name: core.EventDeliveryAssigned,
		Payload: proto.DeliveryAssigned{
			OrderID:       order.ID,
			DeliveryBoyID: order.DeliveryBoyID,
			Address:       order.Address,
			TS:            time.Now().Unix(),
		},
	})
	h.hub.RouteToUser(order.UserID, &core.Event{
		Name:    core.EventOrderUpdate,
		Payload: orderUpdate(order),
	})

	c.JSON(stdhttp.StatusOK, orderResponse(order))
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status. The ordering user
// is notified of the change.
func (h *APIHandlers) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.orderID(c)
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !store.ValidOrderStatus(req.Status) {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "unknown order status"})
		return
	}

	order, err := h.store.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.orderError(c, err, "update order status")
		return
	}

	h.hub.RouteToUser(order.UserID, &core.Event{
		Name:    core.EventOrderUpdate,
		Payload: orderUpdate(order),
	})

	c.JSON(stdhttp.StatusOK, orderResponse(order))
}

func (h *APIHandlers) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

func (h *APIHandlers) orderError(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "order not found"})
		return
	}
	h.log.Error().Err(err).Msg(what)
	c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func fuelPriceUpdate(p store.FuelPrice) proto.FuelPriceUpdate {
	return proto.FuelPriceUpdate{
		FuelType:  p.FuelType,
		Price:     p.Price,
		UpdatedAt: p.UpdatedAt.Unix(),
	}
}

func orderUpdate(o *store.Order) proto.OrderUpdate {
	return proto.OrderUpdate{
		OrderID: o.ID,
		Status:  o.Status,
		TS:      o.UpdatedAt.Unix(),
	}
}

type orderBody struct {
	ID            int64   `json:"id"`
	UserID        string  `json:"userId"`
	FuelType      string  `json:"fuelType"`
	Quantity      float64 `json:"quantity"`
	Address       string  `json:"address"`
	Status        string  `json:"status"`
	DeliveryBoyID string  `json:"deliveryBoyId,omitempty"`
	CreatedAt     int64   `json:"createdAt"`
	UpdatedAt     int64   `json:"updatedAt"`
}

func orderResponse(o *store.Order) orderBody {
	return orderBody{
		ID:            o.ID,
		UserID:        o.UserID,
		FuelType:      o.FuelType,
		Quantity:      o.Quantity,
		Address:       o.Address,
		Status:        o.Status,
		DeliveryBoyID: o.DeliveryBoyID,
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
}
