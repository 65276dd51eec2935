// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/models"
	"github.com/danielhkuo/quickly-draw/testutil"
)

func TestDeviceRegister(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDeviceHandler(env.db, env.cfg)

	// A device that entered a raffle before registering gets the web default
	raffleID, _, _ := testutil.CreateTestRaffle(t, env.db, env.cfg, models.StatusActive, 0)
	participationID, _ := testutil.AddTestParticipation(t, env.db, raffleID, "T-0001")
	enterReq := httptest.NewRequest("POST", "/raffles/slug/participations", nil)
	enterReq.Header.Set("X-Device-UUID", "existing-uuid-456")
	existingDeviceID, err := GetOrCreateDevice(env.db, enterReq)
	if err != nil {
		t.Fatalf("Failed to create existing device: %v", err)
	}
	if err := LinkDeviceToRaffle(env.db, existingDeviceID, raffleID, models.RoleParticipant, &participationID); err != nil {
		t.Fatalf("Failed to link device: %v", err)
	}

	tests := []struct {
		name           string
		deviceUUID     string
		requestBody    interface{}
		expectedStatus int
		checkResponse  func(t *testing.T, resp *models.RegisterDeviceResponse)
	}{
		{
			name:           "new device registration",
			deviceUUID:     "test-uuid-123",
			requestBody:    models.RegisterDeviceRequest{Platform: "ios"},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *models.RegisterDeviceResponse) {
				if resp.DeviceID == "" {
					t.Error("Expected non-empty device_id")
				}
				if !resp.IsNew {
					t.Error("Expected is_new to be true for new device")
				}

				var platform string
				err := env.db.QueryRow("SELECT platform FROM device WHERE id = $1", resp.DeviceID).Scan(&platform)
				if err != nil {
					t.Fatalf("Failed to query device: %v", err)
				}
				if platform != "ios" {
					t.Errorf("Expected platform 'ios', got '%s'", platform)
				}
			},
		},
		{
			name:           "existing device registration",
			deviceUUID:     "existing-uuid-456",
			requestBody:    models.RegisterDeviceRequest{Platform: "android"},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *models.RegisterDeviceResponse) {
				if resp.DeviceID != existingDeviceID {
					t.Errorf("Expected device_id %s, got %s", existingDeviceID, resp.DeviceID)
				}
				if resp.IsNew {
					t.Error("Expected is_new to be false for existing device")
				}
				if resp.Raffles != 1 {
					t.Errorf("Expected 1 linked raffle, got %d", resp.Raffles)
				}

				var platform string
				err := env.db.QueryRow("SELECT platform FROM device WHERE id = $1", resp.DeviceID).Scan(&platform)
				if err != nil {
					t.Fatalf("Failed to query device: %v", err)
				}
				if platform != models.PlatformAndroid {
					t.Errorf("Expected registration to replace the web default, got '%s'", platform)
				}
			},
		},
		{
			name:           "missing X-Device-UUID header",
			requestBody:    models.RegisterDeviceRequest{Platform: "ios"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid platform",
			deviceUUID:     "test-uuid-789",
			requestBody:    models.RegisterDeviceRequest{Platform: "windows"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.requestBody)
			if err != nil {
				t.Fatalf("Failed to marshal request body: %v", err)
			}

			req := httptest.NewRequest("POST", "/devices/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.deviceUUID != "" {
				req.Header.Set("X-Device-UUID", tt.deviceUUID)
			}
			w := serve(handler.Register, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if (tt.expectedStatus == http.StatusCreated || tt.expectedStatus == http.StatusOK) && tt.checkResponse != nil {
				var resp models.RegisterDeviceResponse
				testutil.AssertJSON(t, w, &resp)
				tt.checkResponse(t, &resp)
			}
		})
	}
}

func TestDeviceGetMe(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDeviceHandler(env.db, env.cfg)

	deviceID, _ := auth.GenerateID(16)
	deviceUUID := "get-me-test-uuid"
	_, err := env.db.Exec(`
		INSERT INTO device (id, device_uuid, platform, created_at, last_seen_at)
		VALUES ($1, $2, 'macos', $3, $3)
	`, deviceID, deviceUUID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}

	// One raffle owned, two entered, one of those won
	ownedID, _, _ := testutil.CreateTestRaffle(t, env.db, env.cfg, models.StatusActive, 0)
	wonID, _, _ := testutil.CreateTestRaffle(t, env.db, env.cfg, models.StatusActive, 0)
	lostID, _, _ := testutil.CreateTestRaffle(t, env.db, env.cfg, models.StatusActive, 0)
	wonPID, _ := testutil.AddTestParticipation(t, env.db, wonID, "T-0001")
	lostPID, _ := testutil.AddTestParticipation(t, env.db, lostID, "T-0001")
	otherPID, _ := testutil.AddTestParticipation(t, env.db, lostID, "T-0002")
	if _, err := env.db.Exec(`UPDATE raffle SET winning_participation_id = $1 WHERE id = $2`, wonPID, wonID); err != nil {
		t.Fatalf("Failed to set winner: %v", err)
	}
	if _, err := env.db.Exec(`UPDATE raffle SET winning_participation_id = $1 WHERE id = $2`, otherPID, lostID); err != nil {
		t.Fatalf("Failed to set winner: %v", err)
	}
	links := []struct {
		raffleID, role string
		pid            *string
	}{
		{ownedID, models.RoleOwner, nil},
		{wonID, models.RoleParticipant, &wonPID},
		{lostID, models.RoleParticipant, &lostPID},
	}
	for _, l := range links {
		if err := LinkDeviceToRaffle(env.db, deviceID, l.raffleID, l.role, l.pid); err != nil {
			t.Fatalf("Failed to link device: %v", err)
		}
	}

	tests := []struct {
		name           string
		deviceUUID     string
		expectedStatus int
	}{
		{"get existing device", deviceUUID, http.StatusOK},
		{"device not found", "nonexistent-uuid", http.StatusNotFound},
		{"missing header", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/devices/me", nil)
			if tt.deviceUUID != "" {
				req.Header.Set("X-Device-UUID", tt.deviceUUID)
			}
			w := serve(handler.GetMe, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusOK {
				var resp models.DeviceInfo
				testutil.AssertJSON(t, w, &resp)
				if resp.ID != deviceID || resp.Platform != "macos" {
					t.Errorf("Unexpected device %+v", resp)
				}
				if resp.RafflesOwned != 1 || resp.RafflesEntered != 2 || resp.RafflesWon != 1 {
					t.Errorf("Expected 1 owned, 2 entered, 1 won; got %d, %d, %d",
						resp.RafflesOwned, resp.RafflesEntered, resp.RafflesWon)
				}
			}
		})
	}
}

func TestLinkDeviceToRaffle_KeepsOwnerRole(t *testing.T) {
	env := newTestEnv(t)

	raffleID, _, _ := testutil.CreateTestRaffle(t, env.db, env.cfg, models.StatusActive, 0)
	participationID, _ := testutil.AddTestParticipation(t, env.db, raffleID, "T-0001")

	req := httptest.NewRequest("POST", "/raffles", nil)
	req.Header.Set("X-Device-UUID", "owner-device")
	deviceID, err := GetOrCreateDevice(env.db, req)
	if err != nil || deviceID == "" {
		t.Fatalf("Failed to create device: %v", err)
	}

	if err := LinkDeviceToRaffle(env.db, deviceID, raffleID, models.RoleOwner, nil); err != nil {
		t.Fatalf("Failed to link owner: %v", err)
	}
	// The owner enters their own raffle.
	if err := LinkDeviceToRaffle(env.db, deviceID, raffleID, models.RoleParticipant, &participationID); err != nil {
		t.Fatalf("Failed to link participant: %v", err)
	}

	var role string
	var linked *string
	err = env.db.QueryRow(`
		SELECT role, participation_id FROM device_raffle WHERE device_id = $1 AND raffle_id = $2
	`, deviceID, raffleID).Scan(&role, &linked)
	if err != nil {
		t.Fatalf("Failed to query link: %v", err)
	}
	if role != models.RoleOwner {
		t.Errorf("Expected role to stay owner, got %s", role)
	}
	if linked == nil || *linked != participationID {
		t.Errorf("Expected participation %s to be recorded, got %v", participationID, linked)
	}

	// Without a device header nothing is created.
	id, err := GetOrCreateDevice(env.db, httptest.NewRequest("GET", "/", nil))
	if err != nil || id != "" {
		t.Errorf("Expected no device without header, got %q, %v", id, err)
	}
}

func TestDeviceRafflesAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.eng = engine.New(env.db, engine.WithNotifier(engine.NewOutboxNotifier(env.db)))

	raffles := NewRaffleHandler(env.db, env.cfg, env.eng)
	participations := NewParticipationHandler(env.db, env.cfg, env.eng)
	draws := NewDrawHandler(env.db, env.cfg, env.eng)
	devices := NewDeviceHandler(env.db, env.cfg)

	// Owner creates and publishes from one device.
	w := serve(raffles.CreateRaffle, testutil.MakeRequest("POST", "/raffles",
		models.CreateRaffleRequest{Title: "Device Raffle", OwnerName: "Olive"},
		map[string]string{"X-Device-UUID": "owner-uuid"}))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var created models.CreateRaffleResponse
	testutil.AssertJSON(t, w, &created)

	w = serve(raffles.PublishRaffle, adminRequest("POST", "/publish", created.RaffleID, nil,
		map[string]string{"X-Admin-Key": created.AdminKey}))
	testutil.AssertStatus(t, w, http.StatusOK)
	var published models.PublishRaffleResponse
	testutil.AssertJSON(t, w, &published)

	// Two holders enter from their own devices.
	holders := []string{"holder-a", "holder-b"}
	for _, uuid := range holders {
		w := serve(participations.Enter, enterRequest(published.ShareSlug,
			models.EnterRaffleRequest{HolderName: "Holder " + uuid},
			map[string]string{"X-Device-UUID": uuid}))
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	myRaffles := func(uuid string) models.GetMyRafflesResponse {
		t.Helper()
		req := httptest.NewRequest("GET", "/devices/my-raffles", nil)
		req.Header.Set("X-Device-UUID", uuid)
		w := serve(devices.GetMyRaffles, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.GetMyRafflesResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	owned := myRaffles("owner-uuid")
	if len(owned.Raffles) != 1 || owned.Raffles[0].Role != models.RoleOwner {
		t.Fatalf("Expected one owned raffle, got %+v", owned.Raffles)
	}
	if owned.Raffles[0].ShareSlug == nil || *owned.Raffles[0].ShareSlug != published.ShareSlug {
		t.Error("Expected the owned raffle to carry its share slug")
	}

	w = serve(draws.RunDraw, adminRequest("POST", "/draw/run", created.RaffleID, nil,
		map[string]string{"X-Admin-Key": created.AdminKey}))
	testutil.AssertStatus(t, w, http.StatusOK)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.eng.Wait(ctx); err != nil {
		t.Fatalf("Notifications did not finish: %v", err)
	}

	winners := 0
	for _, uuid := range holders {
		entered := myRaffles(uuid)
		if len(entered.Raffles) != 1 {
			t.Fatalf("Expected one entered raffle for %s, got %d", uuid, len(entered.Raffles))
		}
		summary := entered.Raffles[0]
		if summary.Role != models.RoleParticipant || summary.ParticipationID == nil {
			t.Errorf("Expected participant link with participation, got %+v", summary)
		}
		if summary.Status != models.StatusFinished {
			t.Errorf("Expected finished raffle, got %s", summary.Status)
		}

		req := httptest.NewRequest("GET", "/devices/notifications", nil)
		req.Header.Set("X-Device-UUID", uuid)
		w := serve(devices.GetNotifications, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var notes models.NotificationsResponse
		testutil.AssertJSON(t, w, &notes)
		if len(notes.Notifications) != 1 {
			t.Fatalf("Expected one notification for %s, got %d", uuid, len(notes.Notifications))
		}
		note := notes.Notifications[0]
		if note.RaffleID != created.RaffleID {
			t.Errorf("Notification for wrong raffle %s", note.RaffleID)
		}
		if summary.IsWinner {
			winners++
			if note.Kind != models.NotifyDrawWon {
				t.Errorf("Winner should get %s, got %s", models.NotifyDrawWon, note.Kind)
			}
		} else if note.Kind != models.NotifyDrawFinished {
			t.Errorf("Non-winner should get %s, got %s", models.NotifyDrawFinished, note.Kind)
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly one winning device, got %d", winners)
	}

	t.Run("unregistered device", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/devices/notifications", nil)
		req.Header.Set("X-Device-UUID", "ghost")
		testutil.AssertStatus(t, serve(devices.GetNotifications, req), http.StatusNotFound)
	})
}
