package otpapi_test

import (
	"testing"
)

func adminCall(method, path string, body interface{}) call {
	return call{
		method:  method,
		path:    path,
		body:    body,
		headers: map[string]string{"X-Admin-Token": adminToken},
	}
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	s := newServer(t, serverOpts{})

	status, _ := s.do(t, call{
		method:  "GET",
		path:    "/api/otp/admin/status?mobile_number=" + mobile + "&ip=10.0.0.1",
		headers: map[string]string{"X-Admin-Token": ""},
	})
	if status != 404 {
		t.Fatalf("admin routes should not be mounted, got %d", status)
	}
}

func TestAdmin_RejectsWrongToken(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})

	status, body := s.do(t, call{
		method:  "GET",
		path:    "/api/otp/admin/status?mobile_number=" + mobile + "&ip=10.0.0.1",
		headers: map[string]string{"X-Admin-Token": "guess"},
	})
	if status != 401 || body["error"] != "unauthorized" {
		t.Fatalf("expected 401, got %d: %v", status, body)
	}
}

func TestAdmin_StatusReflectsUsage(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})
	s.do(t, call{
		method:  "POST",
		path:    "/api/otp/generate",
		body:    map[string]string{"mobile_number": mobile},
		headers: map[string]string{"X-Forwarded-For": "10.0.0.9"},
	})

	status, body := s.do(t, adminCall("GET", "/api/otp/admin/status?mobile_number="+mobile+"&ip=10.0.0.9", nil))
	if status != 200 {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	st, _ := data(t, body)["status"].(map[string]interface{})
	gen, _ := st["generation"].(map[string]interface{})
	if gen["used"] != float64(1) || gen["remaining"] != float64(2) || gen["limit"] != float64(3) {
		t.Fatalf("unexpected generation quota: %v", gen)
	}
	ip, _ := st["ip_global"].(map[string]interface{})
	if ip["used"] != float64(1) {
		t.Fatalf("expected one request counted for the ip, got %v", ip)
	}
	if st["account_locked"] != false {
		t.Fatalf("account should not be locked: %v", st)
	}
}

func TestAdmin_StatusValidatesQuery(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})

	status, body := s.do(t, adminCall("GET", "/api/otp/admin/status?mobile_number=abc", nil))
	if status != 400 || body["error"] != "validation_error" {
		t.Fatalf("expected validation error, got %d: %v", status, body)
	}
	errs, _ := body["errors"].(map[string]interface{})
	if _, ok := errs["ip"]; !ok {
		t.Fatalf("expected ip to be required, got %v", errs)
	}
}

func TestAdmin_UnlockAfterLockout(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})
	s.post(t, "/api/otp/generate", map[string]string{"mobile_number": mobile})
	wrong := wrongCode(s.sms.code(mobile))

	for i := 0; i < 5; i++ {
		s.post(t, "/api/otp/verify", map[string]string{"mobile_number": mobile, "otp_code": wrong})
	}

	status, body := s.post(t, "/api/otp/generate", map[string]string{"mobile_number": mobile})
	if status != 429 {
		t.Fatalf("locked account should be denied generation, got %d: %v", status, body)
	}

	status, body = s.do(t, adminCall("POST", "/api/otp/admin/unlock", map[string]string{"mobile_number": mobile}))
	if status != 200 || data(t, body)["was_locked"] != true {
		t.Fatalf("expected unlock of a locked account, got %d: %v", status, body)
	}

	_, body = s.do(t, adminCall("GET", "/api/otp/admin/status?mobile_number="+mobile+"&ip=0.0.0.0", nil))
	st, _ := data(t, body)["status"].(map[string]interface{})
	if st["account_locked"] != false {
		t.Fatalf("expected account unlocked, got %v", st)
	}
}

func TestAdmin_AttemptsArePaginated(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})
	for i := 0; i < 3; i++ {
		s.post(t, "/api/otp/generate", map[string]string{"mobile_number": mobile})
	}
	s.post(t, "/api/otp/generate", map[string]string{"mobile_number": "9123456780"})

	status, body := s.do(t, adminCall("GET", "/api/otp/admin/attempts?identifier="+mobile+"&page=1&page_size=2", nil))
	if status != 200 {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	d := data(t, body)
	items, _ := d["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected a page of 2 rows, got %d", len(items))
	}
	pg, _ := d["pagination"].(map[string]interface{})
	if pg["total"] != float64(3) || pg["pages"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pg)
	}
	for _, it := range items {
		if row, _ := it.(map[string]interface{}); row["identifier"] != mobile {
			t.Fatalf("rows for another identifier leaked: %v", row)
		}
	}
}

func TestAdmin_Suspicious(t *testing.T) {
	s := newServer(t, serverOpts{adminToken: adminToken})

	status, body := s.do(t, adminCall("GET", "/api/otp/admin/suspicious", nil))
	if status != 400 {
		t.Fatalf("identifier is required, got %d: %v", status, body)
	}

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		s.do(t, call{
			method:  "POST",
			path:    "/api/otp/verify",
			body:    map[string]string{"mobile_number": mobile, "otp_code": "123456"},
			headers: map[string]string{"X-Forwarded-For": ip},
		})
	}

	status, body = s.do(t, adminCall("GET", "/api/otp/admin/suspicious?identifier="+mobile+"&minutes=30", nil))
	if status != 200 {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	d := data(t, body)
	act, _ := d["activity"].(map[string]interface{})
	if act["unique_ip_count"] != float64(4) || act["multiple_ips"] != true {
		t.Fatalf("expected four distinct ips flagged, got %v", act)
	}
	if d["flagged"] != true || d["window_minutes"] != float64(30) {
		t.Fatalf("unexpected analysis envelope: %v", d)
	}
}
