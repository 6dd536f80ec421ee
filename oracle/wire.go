package oracle

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"google.golang.org/protobuf/types/known/structpb"
)

// The oracle service exchanges google.protobuf.Struct messages so that no
// generated stubs are needed on either side.
const (
	serviceName         = "oqtopus.nonlocal.v1.OracleService"
	measureMethod       = "/" + serviceName + "/Measure"
	getDeviceInfoMethod = "/" + serviceName + "/GetDeviceInfo"
)

func settingToStruct(ms core.MeasurementSetting, program string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"id":          ms.ID,
		"entangled":   ms.Entangled,
		"alice_angle": ms.AliceAngle,
		"bob_angle":   ms.BobAngle,
		"shots":       1,
		"program":     program,
	})
}

func settingFromStruct(s *structpb.Struct) (core.MeasurementSetting, error) {
	f := s.GetFields()
	for _, k := range []string{"entangled", "alice_angle", "bob_angle"} {
		if _, ok := f[k]; !ok {
			return core.MeasurementSetting{}, errors.Wrapf(core.ErrInvalidArgument, "%s is missing", k)
		}
	}
	if shots, ok := f["shots"]; ok && shots.GetNumberValue() != 1 {
		return core.MeasurementSetting{}, errors.Wrapf(core.ErrInvalidArgument,
			"shots(%v) must be 1", shots.GetNumberValue())
	}
	return core.MeasurementSetting{
		ID:         f["id"].GetStringValue(),
		Entangled:  f["entangled"].GetBoolValue(),
		AliceAngle: f["alice_angle"].GetNumberValue(),
		BobAngle:   f["bob_angle"].GetNumberValue(),
	}, nil
}

func countsToStruct(c core.Counts, message string) (*structpb.Struct, error) {
	m := make(map[string]interface{}, len(c))
	for k, v := range c {
		m[k] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"counts":  m,
		"message": message,
	})
}

func countsFromStruct(s *structpb.Struct) (core.Counts, error) {
	c := core.Counts{}
	for k, v := range s.GetFields()["counts"].GetStructValue().GetFields() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, errors.Errorf("count of %q is not a number", k)
		}
		n := v.GetNumberValue()
		if n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
			return nil, errors.Errorf("count of %q is not a valid shot count: %v", k, n)
		}
		c[k] = uint32(n)
	}
	return c, nil
}

// answerFromCounts reads the answer of a single shot result.
func answerFromCounts(c core.Counts) (core.AnswerPair, error) {
	var total uint64
	var hit string
	for k, v := range c {
		total += uint64(v)
		if v > 0 {
			hit = k
		}
	}
	if total != 1 {
		return core.AnswerPair{}, errors.Errorf("expected 1 shot, got counts %s", c)
	}
	return core.AnswerPairFromBitString(hit)
}

func deviceInfoToStruct(di *core.DeviceInfo) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"device_name":   di.DeviceName,
		"provider_name": di.ProviderName,
		"type":          di.Type,
		"status":        di.Status.String(),
	})
}

func deviceInfoFromStruct(s *structpb.Struct) *core.DeviceInfo {
	f := s.GetFields()
	st := core.Unavailable
	if f["status"].GetStringValue() == core.Available.String() {
		st = core.Available
	}
	return &core.DeviceInfo{
		DeviceName:   f["device_name"].GetStringValue(),
		ProviderName: f["provider_name"].GetStringValue(),
		Type:         f["type"].GetStringValue(),
		Status:       st,
	}
}
