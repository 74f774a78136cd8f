package handler

import (
	"errors"
	"net/http"

	"crypto_market/internal/domain/advertisement/service"
	"crypto_market/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdvertisementHandler struct {
	service service.AdvertisementService
}

func NewAdvertisementHandler(s service.AdvertisementService) *AdvertisementHandler {
	return &AdvertisementHandler{service: s}
}

type PurchaseInput struct {
	ProductID    string `json:"productId" binding:"required,uuid"`
	DurationDays int    `json:"durationDays" binding:"required,gt=0"`
}

// Purchase 购买推广位
// @Summary 购买推广位
// @Tags Advertisement
// @Accept json
// @Produce json
// @Param input body PurchaseInput true "Advertisement"
// @Success 200 {object} response.Response
// @Router /advertisements [post]
func (h *AdvertisementHandler) Purchase(c *gin.Context) {
	var input PurchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	val, _ := c.Get("userID")
	userID, _ := val.(string)

	ad, err := h.service.Purchase(c.Request.Context(), userID, input.ProductID, input.DurationDays)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDuration) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
		response.Error(c, http.StatusServiceUnavailable, response.ErrGatewayUnavailable, "payment service temporarily unavailable")
		return
	}
	response.Success(c, ad)
}

// ListActive 当前生效的推广位
// @Summary 当前生效的推广位
// @Tags Advertisement
// @Produce json
// @Success 200 {object} response.Response
// @Router /advertisements/active [get]
func (h *AdvertisementHandler) ListActive(c *gin.Context) {
	ads, err := h.service.ListActive(c.Request.Context(), 50)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, ads)
}
