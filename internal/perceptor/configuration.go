package perceptor

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/okieraised/perceptor-bringup/internal/cerrors"
	"github.com/okieraised/perceptor-bringup/internal/utilities"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// CameraSlot names one of the four stereo camera mounting positions.
type CameraSlot string

const (
	FrontStereoCamera CameraSlot = "front_stereo_camera"
	BackStereoCamera  CameraSlot = "back_stereo_camera"
	LeftStereoCamera  CameraSlot = "left_stereo_camera"
	RightStereoCamera CameraSlot = "right_stereo_camera"
)

// CameraSlots lists every slot in canonical order. Enabled camera lists are
// always emitted in this order.
var CameraSlots = []CameraSlot{FrontStereoCamera, BackStereoCamera, LeftStereoCamera, RightStereoCamera}

func (s CameraSlot) Valid() bool {
	return lo.Contains(CameraSlots, s)
}

// Capability tokens accepted in a camera capability string.
const (
	Driver        = "driver"
	Rectify       = "rectify"
	Resize        = "resize"
	Reformat      = "reformat"
	ESSFull       = "ess_full"
	ESSLight      = "ess_light"
	ESSSkipFrames = "ess_skip_frames"
	Cuvslam       = "cuvslam"
	Nvblox        = "nvblox"
	NvbloxPeople  = "nvblox_people"
	VGL           = "vgl"
)

// Capabilities is the closed set of tokens a capability string may hold.
var Capabilities = []string{Driver, Rectify, Resize, Reformat, ESSFull, ESSLight, ESSSkipFrames, Cuvslam, Nvblox, NvbloxPeople, VGL}

// Configuration maps each camera slot to its capability string. A slot that
// is absent behaves exactly like one mapped to the empty string.
//
// All queries are substring containment checks on the raw string, so
// asking for "nvblox" also matches a camera configured with "nvblox_people".
type Configuration map[CameraSlot]string

// Get returns the capability string of slot.
func (c Configuration) Get(slot CameraSlot) string {
	return c[slot]
}

// HasCapability reports whether slot's capability string contains token.
func (c Configuration) HasCapability(slot CameraSlot, token string) bool {
	return strings.Contains(c[slot], token)
}

// ValuesContain reports whether any slot contains token.
func (c Configuration) ValuesContain(token string) bool {
	for _, slot := range CameraSlots {
		if c.HasCapability(slot, token) {
			return true
		}
	}
	return false
}

// SlotsWith returns, in canonical order, the slots containing token.
func (c Configuration) SlotsWith(token string) []CameraSlot {
	return lo.Filter(CameraSlots, func(slot CameraSlot, _ int) bool {
		return c.HasCapability(slot, token)
	})
}

// EnabledList returns SlotsWith(token) as a comma separated string, the
// shape launch arguments such as enabled_stereo_cameras expect.
func (c Configuration) EnabledList(token string) string {
	return JoinSlots(c.SlotsWith(token))
}

// Without returns a copy of c in which every token containing one of subs
// has been removed. Remaining tokens keep their order.
func (c Configuration) Without(subs ...string) Configuration {
	out := make(Configuration, len(c))
	for slot, value := range c {
		kept := lo.Reject(utilities.SplitCommaList(value), func(token string, _ int) bool {
			return utilities.ContainsAny(token, subs...)
		})
		out[slot] = utilities.JoinCommaList(kept)
	}
	return out
}

// Clone returns an independent copy of c with every slot present.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(CameraSlots))
	for _, slot := range CameraSlots {
		out[slot] = c[slot]
	}
	for slot, value := range c {
		out[slot] = value
	}
	return out
}

// Validate reports unknown slots, unknown tokens and cameras requesting
// both ESS engines. Every problem found is returned.
func (c Configuration) Validate() error {
	var errs error
	slots := lo.Keys(map[CameraSlot]string(c))
	slices.Sort(slots)
	for _, slot := range slots {
		if !slot.Valid() {
			errs = multierr.Append(errs, cerrors.ErrUnknownCameraSlot.WithMessage("unknown camera slot %q", slot))
		}
	}
	for _, slot := range CameraSlots {
		tokens := utilities.SplitCommaList(c[slot])
		for _, token := range tokens {
			if !lo.Contains(Capabilities, token) {
				errs = multierr.Append(errs, cerrors.ErrInvalidCapability.WithMessage("camera %s: unknown capability %q", slot, token))
			}
		}
		if lo.Contains(tokens, ESSFull) && lo.Contains(tokens, ESSLight) {
			errs = multierr.Append(errs, cerrors.ErrInvalidCameraConfig.WithMessage("camera %s: can not run ess_light and ess_full at the same time", slot))
		}
	}
	return errs
}

// String renders c as a JSON object, which ParseConfiguration accepts back.
func (c Configuration) String() string {
	b, err := json.Marshal(c.Clone())
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseConfiguration reads a configuration written as a JSON object, a YAML
// mapping, or a single quoted dictionary such as
// {'front_stereo_camera': 'driver,rectify'}.
func ParseConfiguration(text string) (Configuration, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, cerrors.ErrInvalidCameraConfig.WithMessage("failed to parse camera configuration").WithCause(errors.Wrap(err, text))
	}
	out := make(Configuration, len(raw))
	for k, v := range raw {
		out[CameraSlot(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// JoinSlots joins slots with commas.
func JoinSlots(slots []CameraSlot) string {
	return utilities.JoinCommaList(lo.Map(slots, func(s CameraSlot, _ int) string { return string(s) }))
}

// ParseSlots splits a comma separated camera list. Blank entries are dropped.
func ParseSlots(list string) []CameraSlot {
	return lo.Map(utilities.SplitCommaList(list), func(s string, _ int) CameraSlot { return CameraSlot(s) })
}
