package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the path used to register a route at the root of a
	// fiber.Router group created with app.Route.
	RouterRootPath = "/"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
