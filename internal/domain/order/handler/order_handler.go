package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"crypto_market/internal/domain/order/model"
	"crypto_market/internal/domain/order/service"
	"crypto_market/pkg/response"
	"crypto_market/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type CheckoutItemInput struct {
	ProductID    string          `json:"productId" binding:"required"`
	ProductName  string          `json:"productName" binding:"required"`
	ProductPrice decimal.Decimal `json:"productPrice" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,gt=0"`
	BulkOption   json.RawMessage `json:"bulkOption"`
}

type CheckoutInput struct {
	VendorID string              `json:"vendorId" binding:"required"`
	Items    []CheckoutItemInput `json:"items" binding:"required,min=1,dive"`
}

// Checkout 购物车结算下单
// @Summary 购物车结算下单
// @Tags Order
// @Accept json
// @Produce json
// @Param input body CheckoutInput true "Cart"
// @Success 200 {object} response.Response
// @Router /orders/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	items := make([]service.CheckoutItem, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, service.CheckoutItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductPrice: it.ProductPrice,
			Quantity:     it.Quantity,
			BulkOption:   it.BulkOption,
		})
	}

	order, err := h.service.Checkout(c.Request.Context(), getUserIdFromContext(c), input.VendorID, items)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrEmptyCart, err.Error())
		return
	}

	response.Success(c, order)
}

// List 我的订单列表（买家或卖家视角）
// @Summary 我的订单列表
// @Tags Order
// @Produce json
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} response.Response
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	page, limit, offset := utils.GetPagination(c)

	orders, total, err := h.service.GetOrders(c.Request.Context(), getUserIdFromContext(c), offset, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  orders,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// View 订单详情，访问时触发超时对账与支付意向创建
// @Summary 订单详情
// @Tags Order
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Router /orders/{id} [get]
func (h *OrderHandler) View(c *gin.Context) {
	view, err := h.service.ViewOrder(c.Request.Context(), c.Param("id"), getUserIdFromContext(c))
	if err != nil {
		h.orderError(c, err)
		return
	}
	response.Success(c, view)
}

// MarkAsSent 卖家标记已发货
// @Summary 标记已发货
// @Tags Order
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Router /orders/{id}/sent [post]
func (h *OrderHandler) MarkAsSent(c *gin.Context) {
	order, err := h.service.MarkAsSent(c.Request.Context(), c.Param("id"), getUserIdFromContext(c))
	if err != nil {
		h.orderError(c, err)
		return
	}
	response.Success(c, order)
}

// MarkAsCompleted 买家确认收货，触发卖家打款
// @Summary 确认收货
// @Tags Order
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Router /orders/{id}/complete [post]
func (h *OrderHandler) MarkAsCompleted(c *gin.Context) {
	order, err := h.service.MarkAsCompleted(c.Request.Context(), c.Param("id"), getUserIdFromContext(c))
	if err != nil {
		h.orderError(c, err)
		return
	}
	response.Success(c, order)
}

// Cancel 取消订单
// @Summary 取消订单
// @Tags Order
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"), getUserIdFromContext(c))
	if err != nil {
		h.orderError(c, err)
		return
	}
	response.Success(c, order)
}

// orderError 统一映射订单域错误
func (h *OrderHandler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
	case errors.Is(err, model.ErrUnauthorized):
		response.Error(c, http.StatusForbidden, response.ErrNotParticipant, "not a participant of this order")
	case errors.Is(err, model.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, response.ErrInvalidTransition, "order state does not allow this action")
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
	}
}

func getUserIdFromContext(c *gin.Context) string {
	val, _ := c.Get("userID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
