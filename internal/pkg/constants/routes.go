package constants

// Static route constants
const (
	WebhookRoute         = "/webhooks/gateway"
	GatewayConnectRoute  = "/gateway/connect"
	GatewayCallbackRoute = "/gateway/callback"
	APIV1Route           = "/api/v1"
)
