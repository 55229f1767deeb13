package domain

import "time"

// Role identifies what a logged-in client acts as.
type Role string

const (
	RoleUser    Role = "user"
	RolePrinter Role = "printer"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePrinter, RoleAdmin:
		return true
	default:
		return false
	}
}

// Session is the identity opened by a successful login.
type Session struct {
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	StartedAt time.Time `json:"startedAt"`
}

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	LogLevel        string           `json:"logLevel" yaml:"log_level"`
	LogStorePath    string           `json:"logStorePath" yaml:"log_store_path"`
	LogCap          int              `json:"logCap" yaml:"log_cap"`
	DefaultLocation GeoPoint         `json:"defaultLocation" yaml:"default_location"`
	Analysis        AnalysisSettings `json:"analysis" yaml:"analysis"`
	Channel         ChannelSettings  `json:"channel" yaml:"channel"`
}

// AnalysisSettings configures the external text-generation service.
type AnalysisSettings struct {
	Project   string        `json:"project" yaml:"project"`
	Region    string        `json:"region" yaml:"region"`
	Model     string        `json:"model" yaml:"model"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	ChunkSize int           `json:"chunkSize" yaml:"chunk_size"`
	MaxChunks int           `json:"maxChunks" yaml:"max_chunks"`
}

// Online reports whether enough is configured to call the remote service.
func (s AnalysisSettings) Online() bool {
	return s.Project != "" && s.Region != ""
}

// ChannelSettings holds the simulated server's response delays and
// recurring publication schedules.
type ChannelSettings struct {
	LoginAck        time.Duration `json:"loginAck" yaml:"login_ack"`
	AIProcess       time.Duration `json:"aiProcess" yaml:"ai_process"`
	DeliveryAck     time.Duration `json:"deliveryAck" yaml:"delivery_ack"`
	ShopSearch      time.Duration `json:"shopSearch" yaml:"shop_search"`
	QRCode          time.Duration `json:"qrCode" yaml:"qr_code"`
	ShopConfirm     time.Duration `json:"shopConfirm" yaml:"shop_confirm"`
	DeliveryConfirm time.Duration `json:"deliveryConfirm" yaml:"delivery_confirm"`
	PrintDuration   time.Duration `json:"printDuration" yaml:"print_duration"`
	RiderDispatch   time.Duration `json:"riderDispatch" yaml:"rider_dispatch"`
	RouteLeg        time.Duration `json:"routeLeg" yaml:"route_leg"`
	StatusTick      string        `json:"statusTick" yaml:"status_tick"`
	PrintJobsTick   string        `json:"printJobsTick" yaml:"print_jobs_tick"`
	HistorySize     int           `json:"historySize" yaml:"history_size"`
}

// PrinterShop is one partner shop that can accept print jobs.
type PrinterShop struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location GeoPoint `json:"location"`
	Rating   float64  `json:"rating,omitempty"`
}
