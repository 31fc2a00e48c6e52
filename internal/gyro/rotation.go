// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gyro

import "github.com/go-gl/mathgl/mgl64"

// Rotation identifies a named board-mounting orientation. The matrix for
// an id is the DCM that maps sensor-frame samples into the body frame.
type Rotation uint8

const (
	RotationNone Rotation = iota
	RotationYaw90
	RotationYaw180
	RotationYaw270
	RotationRoll180
	RotationRoll180Yaw90
	RotationRoll180Yaw270
	RotationPitch180
	RotationRoll90
	RotationRoll270
)

// rotationEuler holds roll, pitch, yaw in degrees for each named rotation.
var rotationEuler = map[Rotation][3]float64{
	RotationNone:          {0, 0, 0},
	RotationYaw90:         {0, 0, 90},
	RotationYaw180:        {0, 0, 180},
	RotationYaw270:        {0, 0, 270},
	RotationRoll180:       {180, 0, 0},
	RotationRoll180Yaw90:  {180, 0, 90},
	RotationRoll180Yaw270: {180, 0, 270},
	RotationPitch180:      {0, 180, 0},
	RotationRoll90:        {90, 0, 0},
	RotationRoll270:       {270, 0, 0},
}

var rotationNames = map[Rotation]string{
	RotationNone:          "none",
	RotationYaw90:         "yaw90",
	RotationYaw180:        "yaw180",
	RotationYaw270:        "yaw270",
	RotationRoll180:       "roll180",
	RotationRoll180Yaw90:  "roll180_yaw90",
	RotationRoll180Yaw270: "roll180_yaw270",
	RotationPitch180:      "pitch180",
	RotationRoll90:        "roll90",
	RotationRoll270:       "roll270",
}

func (r Rotation) String() string {
	if name, ok := rotationNames[r]; ok {
		return name
	}
	return "unknown"
}

// RotationMatrix returns the DCM for r, built as Rz(yaw)·Ry(pitch)·Rx(roll).
// Unknown ids fall back to the identity.
func RotationMatrix(r Rotation) mgl64.Mat3 {
	e, ok := rotationEuler[r]
	if !ok {
		return mgl64.Ident3()
	}

	roll := mgl64.DegToRad(e[0])
	pitch := mgl64.DegToRad(e[1])
	yaw := mgl64.DegToRad(e[2])

	return mgl64.Rotate3DZ(yaw).Mul3(mgl64.Rotate3DY(pitch)).Mul3(mgl64.Rotate3DX(roll))
}
