package bringup

import (
	"os"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Sensor types found in the Nova system info.
const (
	SensorTypeHawk    = "hawk"
	SensorTypeOwl     = "owl"
	SensorTypeRplidar = "rplidar"
)

// Sensor is one entry of the Nova sensor inventory.
type Sensor struct {
	Name     string `yaml:"-" json:"name"`
	Type     string `yaml:"type" json:"type"`
	ModuleID *int   `yaml:"module_id" json:"module_id,omitempty"`
	CameraID *int   `yaml:"camera_id" json:"camera_id,omitempty"`
	IP       string `yaml:"ip" json:"ip,omitempty"`
}

// SystemInfo is the sensor inventory of a Nova robot. Sensors keep the
// order of the file.
type SystemInfo struct {
	Sensors []Sensor `json:"sensors"`
}

func (s *SystemInfo) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Sensors yaml.Node `yaml:"sensors"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Sensors.Kind == 0 {
		return nil
	}
	if raw.Sensors.Kind != yaml.MappingNode {
		return errors.Errorf("line %d: sensors must be a mapping", raw.Sensors.Line)
	}
	for i := 0; i+1 < len(raw.Sensors.Content); i += 2 {
		var sensor Sensor
		if err := raw.Sensors.Content[i+1].Decode(&sensor); err != nil {
			return errors.Wrapf(err, "failed to decode sensor %s", raw.Sensors.Content[i].Value)
		}
		sensor.Name = raw.Sensors.Content[i].Value
		s.Sensors = append(s.Sensors, sensor)
	}
	return nil
}

// ParseSystemInfo decodes a system info document.
func ParseSystemInfo(data []byte) (*SystemInfo, error) {
	info := &SystemInfo{}
	if err := yaml.Unmarshal(data, info); err != nil {
		return nil, errors.Wrap(err, "failed to parse nova system info")
	}
	return info, nil
}

// LoadSystemInfo reads the system info file at path.
func LoadSystemInfo(path string) (*SystemInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.ErrMissingPath.WithMessage("failed to read nova system info %s", path).WithCause(err)
	}
	return ParseSystemInfo(data)
}

// OfType returns the sensors of the given type in file order.
func (s *SystemInfo) OfType(sensorType string) []Sensor {
	var out []Sensor
	for _, sensor := range s.Sensors {
		if sensor.Type == sensorType {
			out = append(out, sensor)
		}
	}
	return out
}
