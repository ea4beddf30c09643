package shared

type ServerConfig struct {
	Carelink CarelinkConfig `mapstructure:"carelink" validate:"required"`
	Google   GoogleConfig   `mapstructure:"google"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
}

type CarelinkConfig struct {
	PrivateKeyPem string         `mapstructure:"privateKeyPem" validate:"required"`
	Cron          CronConfig     `mapstructure:"cron" validate:"required"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	Matching      MatchingConfig `mapstructure:"matching"`
	Presence      PresenceConfig `mapstructure:"presence"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

// MatchingConfig holds the candidate-search radii. Zero values fall back to
// the defaults in the care package(500m for carer requests, 1000m for SOS).
type MatchingConfig struct {
	CarerRequestRadiusMeters float64 `mapstructure:"carerRequestRadiusMeters" validate:"omitempty,gt=0"`
	SOSRadiusMeters          float64 `mapstructure:"sosRadiusMeters" validate:"omitempty,gt=0"`
}

// PresenceConfig controls the sweep that flips users offline once their last
// presence report is older than the TTL.
type PresenceConfig struct {
	TTLMinutes    int    `mapstructure:"ttlMinutes" validate:"omitempty,gt=0"`
	SweepSchedule string `mapstructure:"sweepSchedule"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid"`
}
