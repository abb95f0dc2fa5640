// Package protocol encodes and decodes the JSON frames exchanged with devices.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound message types.
const (
	TypeDeviceRegister = "device_register"
	TypeBiometricData  = "biometric_data"
	TypePoseData       = "pose_data"
	TypeRepDetection   = "rep_detection"
)

// ErrMissingType is returned when a frame has no "type" field.
var ErrMissingType = errors.New("envelope: missing type")

// Envelope is one inbound frame. Data is decoded lazily per type.
type Envelope struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"deviceId"`
	Data     json.RawMessage `json:"data,omitempty"`

	// Some clients put exerciseType next to deviceId on registration.
	ExerciseType string `json:"exerciseType,omitempty"`
}

// RegisterData is the payload of device_register.
type RegisterData struct {
	ExerciseType string `json:"exerciseType"`
}

// BiometricData is the payload of biometric_data.
type BiometricData struct {
	HeartRate    int    `json:"heartRate"`
	RepCount     int    `json:"repCount"`
	ExerciseType string `json:"exerciseType"`
}

// PoseData is the payload of pose_data. Keypoints are carried through untouched.
type PoseData struct {
	ExerciseType string          `json:"exerciseType"`
	Keypoints    json.RawMessage `json:"keypoints,omitempty"`
}

// RepData is the payload of rep_detection.
type RepData struct {
	RepCount     int    `json:"repCount"`
	ExerciseType string `json:"exerciseType"`
}

// Decode parses a single frame and validates the required fields.
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// Register returns the device_register payload. The exercise type may be
// nested under data or sit at the top level.
func (e *Envelope) Register() (RegisterData, error) {
	var d RegisterData
	if err := e.decodeData(&d); err != nil {
		return d, err
	}
	if d.ExerciseType == "" {
		d.ExerciseType = e.ExerciseType
	}
	return d, nil
}

// Biometric returns the biometric_data payload.
func (e *Envelope) Biometric() (BiometricData, error) {
	var d BiometricData
	return d, e.decodeData(&d)
}

// Pose returns the pose_data payload.
func (e *Envelope) Pose() (PoseData, error) {
	var d PoseData
	return d, e.decodeData(&d)
}

// Rep returns the rep_detection payload.
func (e *Envelope) Rep() (RepData, error) {
	var d RepData
	return d, e.decodeData(&d)
}

func (e *Envelope) decodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decoding %s data: %w", e.Type, err)
	}
	return nil
}
