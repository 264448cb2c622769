package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstrumentPreservesStatus(t *testing.T) {
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestDomainCountersDoNotPanic(t *testing.T) {
	AuthzDecision("issue-view", true)
	AuthzDecision("issue-edit", false)
	ActivityRecorded("issue-commented")
	NotificationsEnqueued()
	NotificationsDeduplicated()
}
