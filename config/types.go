package config

// ServerConfig contains server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// RegionConfig describes the tracked bounding box and grid cell size.
type RegionConfig struct {
	MinLat      float64 `yaml:"minLat" validate:"gte=-90,lte=90"`
	MaxLat      float64 `yaml:"maxLat" validate:"gte=-90,lte=90,gtfield=MinLat"`
	MinLon      float64 `yaml:"minLon" validate:"gte=-180,lte=180"`
	MaxLon      float64 `yaml:"maxLon" validate:"gte=-180,lte=180,gtfield=MinLon"`
	CellSizeDeg float64 `yaml:"cellSizeDeg" validate:"gt=0"`
}

// TrackingConfig contains entity lifecycle settings.
type TrackingConfig struct {
	IdleTimeoutS     int `yaml:"idleTimeoutS" validate:"gt=0"`
	JanitorIntervalS int `yaml:"janitorIntervalS" validate:"gte=0"`
}

// MQTTConfig contains the position report broker settings.
type MQTTConfig struct {
	BrokerURL string `yaml:"brokerURL" validate:"omitempty"`
	Topic     string `yaml:"topic" validate:"omitempty"`
	ClientID  string `yaml:"clientID" validate:"omitempty"`
	QoS       int    `yaml:"qos" validate:"gte=0,lte=2"`
}

// GTFSRTConfig contains the optional GTFS-RT VehiclePositions feed used as
// a secondary report source for one organization's transit fleet.
type GTFSRTConfig struct {
	VehiclePositionsURL string `yaml:"vehiclePositionsURL" validate:"omitempty,url"`
	Organization        string `yaml:"organization" validate:"omitempty"`
	ReadIntervalMS      int    `yaml:"readIntervalMS" validate:"gte=0"`
	TimeoutMS           int    `yaml:"timeoutMS" validate:"gte=0"`
}

// Organization is one tenant of the tracker. Entities and subscribers are
// partitioned by organization ID.
type Organization struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server        ServerConfig   `yaml:"server" validate:"required"`
	Region        RegionConfig   `yaml:"region" validate:"required"`
	Tracking      TrackingConfig `yaml:"tracking" validate:"required"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
	GTFSRT        GTFSRTConfig   `yaml:"gtfsrt"`
	Organizations []Organization `yaml:"organizations" validate:"required,min=1,dive"`
}

// OrganizationIDs returns the configured organization IDs.
func (c AppConfig) OrganizationIDs() []string {
	ids := make([]string, 0, len(c.Organizations))
	for _, o := range c.Organizations {
		ids = append(ids, o.ID)
	}
	return ids
}
