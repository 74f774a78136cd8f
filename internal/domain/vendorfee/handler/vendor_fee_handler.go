package handler

import (
	"net/http"

	"crypto_market/internal/domain/vendorfee/service"
	"crypto_market/pkg/response"

	"github.com/gin-gonic/gin"
)

type VendorFeeHandler struct {
	service service.VendorFeeService
}

func NewVendorFeeHandler(s service.VendorFeeService) *VendorFeeHandler {
	return &VendorFeeHandler{service: s}
}

// EnsurePayment 获取或创建入驻费付款单
// @Summary 获取或创建入驻费付款单
// @Tags VendorFee
// @Produce json
// @Success 200 {object} response.Response
// @Router /vendor-fee [post]
func (h *VendorFeeHandler) EnsurePayment(c *gin.Context) {
	val, _ := c.Get("userID")
	userID, _ := val.(string)

	fee, err := h.service.EnsurePayment(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, response.ErrGatewayUnavailable, "payment service temporarily unavailable")
		return
	}
	response.Success(c, fee)
}
