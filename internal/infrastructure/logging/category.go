package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	RabbitMQ        Category = "RabbitMQ"
	WebSocket       Category = "WebSocket"
	Auth            Category = "Auth"
	Notification    Category = "Notification"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// RabbitMQ
	Connection SubCategory = "Connection"
	Topology   SubCategory = "Topology"
	Consume    SubCategory = "Consume"
	Publish    SubCategory = "Publish"
	DeadLetter SubCategory = "DeadLetter"

	// WebSocket / Notification
	Handshake  SubCategory = "Handshake"
	Disconnect SubCategory = "Disconnect"
	Push       SubCategory = "Push"
	Dispatch   SubCategory = "Dispatch"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	RoutingKey   ExtraKey = "RoutingKey"
	DeliveryTag  ExtraKey = "DeliveryTag"
	Redelivered  ExtraKey = "Redelivered"
	Outcome      ExtraKey = "Outcome"
	Exchange     ExtraKey = "Exchange"
	Queue        ExtraKey = "Queue"
	Attempt      ExtraKey = "Attempt"
	UserID       ExtraKey = "UserID"
	ConnectionID ExtraKey = "ConnectionID"
	Connections  ExtraKey = "Connections"
	NotifType    ExtraKey = "NotificationType"
)
