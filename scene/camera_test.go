package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/achilleasa/pathpool/types"
)

func TestNewCameraParameters(t *testing.T) {
	type spec struct {
		origin, target types.Vec3
		expErr         error
		expFocus       float32
	}
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	specs := []spec{
		{types.XYZ(3, 4, 0), types.XYZ(0, 0, 0), nil, 5},
		{types.XYZ(1, 1, 1), types.XYZ(1, 1, 1), ErrDegenerateCamera, 0},
		{types.XYZ(nan, 0, 0), types.XYZ(0, 0, 0), ErrNonFiniteCoordinate, 0},
		{types.XYZ(0, 0, 0), types.XYZ(0, inf, 0), ErrNonFiniteCoordinate, 0},
	}

	for index, s := range specs {
		cam, err := NewCameraParameters(s.origin, s.target)
		if !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}
		if err != nil {
			continue
		}
		if cam.FocusDistance() != s.expFocus {
			t.Fatalf("[spec %d] expected focus distance %f; got %f", index, s.expFocus, cam.FocusDistance())
		}
	}
}

func TestDefaultCamera(t *testing.T) {
	cam := DefaultCamera()
	if cam.IsZero() {
		t.Fatal("expected default camera to be initialized")
	}
	if cam.Origin() != types.XYZ(13, 2, 3) || cam.Target() != types.XYZ(0, 0, 0) {
		t.Fatalf("unexpected default camera: %s", cam)
	}
}

func TestParseCameraFields(t *testing.T) {
	type spec struct {
		fields   map[string]string
		expErr   error
		expField string
	}
	valid := DefaultCamera().Fields()
	with := func(name, value string) map[string]string {
		out := make(map[string]string)
		for k, v := range valid {
			out[k] = v
		}
		out[name] = value
		return out
	}
	without := func(name string) map[string]string {
		out := with(name, "")
		delete(out, name)
		return out
	}

	specs := []spec{
		{valid, nil, ""},
		{with("origin_y", " 2.5 "), nil, ""},
		{without("target_z"), ErrMissingField, "target_z"},
		{with("origin_x", ""), ErrMissingField, "origin_x"},
		{with("target_y", "abc"), ErrMalformedField, "target_y"},
		{with("origin_x", "0"), nil, ""},
		{with("origin_z", "NaN"), ErrNonFiniteCoordinate, ""},
		{map[string]string{
			"origin_x": "1", "origin_y": "1", "origin_z": "1",
			"target_x": "1", "target_y": "1", "target_z": "1",
		}, ErrDegenerateCamera, ""},
	}

	for index, s := range specs {
		_, err := ParseCameraFields(func(name string) (string, bool) {
			v, ok := s.fields[name]
			return v, ok
		})
		if !errors.Is(err, s.expErr) {
			t.Fatalf("[spec %d] expected error %v; got %v", index, s.expErr, err)
		}

		if s.expField != "" {
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != s.expField {
				t.Fatalf("[spec %d] expected error for field %q; got %v", index, s.expField, err)
			}
		}
	}
}

func TestCameraFieldsRoundTrip(t *testing.T) {
	cam, err := NewCameraParameters(types.XYZ(1.5, -2, 0.25), types.XYZ(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}

	fields := cam.Fields()
	parsed, err := ParseCameraFields(func(name string) (string, bool) {
		v, ok := fields[name]
		return v, ok
	})
	if err != nil {
		t.Fatal(err)
	}
	if parsed != cam {
		t.Fatalf("expected %s; got %s", cam, parsed)
	}
}

func TestCameraMove(t *testing.T) {
	cam, _ := NewCameraParameters(types.XYZ(0, 0, 10), types.XYZ(0, 0, 0))

	type spec struct {
		dir       CameraDirection
		expOrigin types.Vec3
	}
	specs := []spec{
		{Forward, types.XYZ(0, 0, 8)},
		{Backward, types.XYZ(0, 0, 12)},
		{Left, types.XYZ(-2, 0, 10)},
		{Right, types.XYZ(2, 0, 10)},
	}

	for index, s := range specs {
		moved := cam.Move(s.dir, 2)
		if moved.Origin().Sub(s.expOrigin).Len() > 1e-5 {
			t.Fatalf("[spec %d] expected origin %v; got %v", index, s.expOrigin, moved.Origin())
		}
		if moved.FocusDistance() != cam.FocusDistance() {
			t.Fatalf("[spec %d] expected focus distance to be preserved", index)
		}
		if moved.Target().Sub(moved.Origin()).Normalize() != cam.Target().Sub(cam.Origin()).Normalize() {
			t.Fatalf("[spec %d] expected view direction to be preserved", index)
		}
	}
}
