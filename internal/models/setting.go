package models

// Setting is a persisted key/value pair for values generated at runtime,
// such as the device id presented to media servers.
type Setting struct {
	Key   string `gorm:"primarykey;size:128" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}

// SettingDeviceID stores the generated backend device id.
const SettingDeviceID = "backend.device_id"
