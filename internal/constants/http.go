package constants

const (
	APIFieldRequestID = "request_id"

	WebsocketPathPrefix = "/ws"
)

const (
	ContentTypeJSON        = "application/json"
	ContentTypeProblemJSON = "application/problem+json"
	ContentTypeYAML        = "application/yaml"
)

const (
	HeaderAccept                    = "Accept"
	HeaderAccessControlAllowHeaders = "Access-Control-Allow-Headers"
	HeaderContentDigest             = "Content-Digest"
	HeaderContentLength             = "Content-Length"
	HeaderContentType               = "Content-Type"
	HeaderOrigin                    = "Origin"
	HeaderXRequestID                = "X-Request-ID"
	HeaderXRequestedWith            = "X-Requested-With"
)
