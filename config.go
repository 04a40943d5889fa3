package boreal

// Config defines the connection configuration. The zero value of every
// optional field means "unset"; only Endpoint is required.
type Config struct {
	// Endpoint is the URL of the BorealDB server.
	Endpoint string `json:"endpoint"`
	// Database is the default database for queries and inserts.
	Database string `json:"database,omitempty"`
	// User and Password authenticate the client.
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	// Compression selects request body compression and asks the server
	// to compress response bodies.
	Compression Compression `json:"-"`
	// Settings are per-request query parameters attached to every
	// request.
	Settings map[string]string `json:"settings,omitempty"`
	// Headers are extra HTTP headers attached to every request.
	Headers map[string]string `json:"headers,omitempty"`
}
