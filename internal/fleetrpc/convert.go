package fleetrpc

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

func positionValue(p model.Position) map[string]any {
	return map[string]any{"lat": p.Lat, "lng": p.Lng}
}

func busValue(b model.Bus) map[string]any {
	return map[string]any{
		"id":       b.ID,
		"number":   b.Number,
		"driver":   b.Driver,
		"route":    b.Route,
		"status":   string(b.Status),
		"position": positionValue(b.Position),
		"target":   positionValue(b.Target),
	}
}

func alertValue(a model.Alert) map[string]any {
	return map[string]any{
		"id":        a.ID,
		"message":   a.Message,
		"read":      a.Read,
		"createdAt": a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func statsValue(st model.Stats) map[string]any {
	return map[string]any{
		"totalBuses":    st.TotalBuses,
		"activeBuses":   st.ActiveBuses,
		"totalStudents": st.TotalStudents,
		"delayedBuses":  st.DelayedBuses,
		"unreadAlerts":  st.UnreadAlerts,
	}
}

// BusFromStruct decodes a bus produced by the service.
func BusFromStruct(s *structpb.Struct) model.Bus {
	f := s.GetFields()
	return model.Bus{
		ID:       f["id"].GetStringValue(),
		Number:   f["number"].GetStringValue(),
		Driver:   f["driver"].GetStringValue(),
		Route:    f["route"].GetStringValue(),
		Status:   model.Status(f["status"].GetStringValue()),
		Position: positionFromValue(f["position"]),
		Target:   positionFromValue(f["target"]),
	}
}

func positionFromValue(v *structpb.Value) model.Position {
	f := v.GetStructValue().GetFields()
	return model.Position{Lat: f["lat"].GetNumberValue(), Lng: f["lng"].GetNumberValue()}
}

// StatsFromStruct decodes dashboard counters produced by the service.
func StatsFromStruct(s *structpb.Struct) model.Stats {
	f := s.GetFields()
	return model.Stats{
		TotalBuses:    int(f["totalBuses"].GetNumberValue()),
		ActiveBuses:   int(f["activeBuses"].GetNumberValue()),
		TotalStudents: int(f["totalStudents"].GetNumberValue()),
		DelayedBuses:  int(f["delayedBuses"].GetNumberValue()),
		UnreadAlerts:  int(f["unreadAlerts"].GetNumberValue()),
	}
}

// AlertsFromStruct decodes an alert listing produced by the service.
func AlertsFromStruct(s *structpb.Struct) []model.Alert {
	var out []model.Alert
	for _, v := range s.GetFields()["alerts"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		created, _ := time.Parse(time.RFC3339Nano, f["createdAt"].GetStringValue())
		out = append(out, model.Alert{
			ID:        int(f["id"].GetNumberValue()),
			Message:   f["message"].GetStringValue(),
			Read:      f["read"].GetBoolValue(),
			CreatedAt: created,
		})
	}
	return out
}
