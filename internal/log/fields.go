package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldExpenseID   = "expense_id"
	FieldCategoryID  = "category_id"
	FieldImportID    = "import_id"
	FieldFileName    = "file_name"
	FieldRecordCount = "record_count"
	FieldUsername    = "username"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentImport    = "import"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpImport   = "import"
	OpRematch  = "rematch"
	OpMirror   = "mirror"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
