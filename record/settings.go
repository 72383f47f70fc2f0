package record

// SettingCode tags an entry in the settings payload.
type SettingCode uint8

const (
	SettingCrosshair SettingCode = iota + 1
	SettingStrictRMT
)

// Settings are the device preferences written to the settings block.
type Settings struct {
	// Crosshair shows a crosshair at the tap position.
	Crosshair bool `yaml:"crosshair"`
	// StrictRMT makes the remote protocol panic on errors.
	StrictRMT bool `yaml:"strict_rmt"`
}

// Encode returns [code][1][0|1] for every setting, in code order.
func (s Settings) Encode() []byte {
	return []byte{
		byte(SettingCrosshair), 1, boolByte(s.Crosshair),
		byte(SettingStrictRMT), 1, boolByte(s.StrictRMT),
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
