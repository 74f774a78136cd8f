package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 订单模块错误 100xx
	ErrOrderNotFound      = 10001
	ErrInvalidTransition  = 10002
	ErrNotParticipant     = 10003
	ErrOrderTerminal      = 10004
	ErrEmptyCart          = 10005

	// 支付/网关模块错误 200xx
	ErrGatewayUnavailable = 20001
	ErrGatewayRejected    = 20002
	ErrInvalidSignature   = 20003
	ErrUnknownReference   = 20004
	ErrRateUnavailable    = 20005

	// 认证错误 300xx
	ErrTokenInvalid = 30001
	ErrNoPermission = 30002

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
