package simulator

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/SebastienMelki/pushbridge/internal/storage"
)

// Keys in the device_info table.
const (
	keyAppID          = "app_id"
	keyOneSignalID    = "onesignal_id"
	keyExternalID     = "external_id"
	keySubscriptionID = "subscription_id"
	keyPushToken      = "push_token"
	keyOptedIn        = "opted_in"
	keyPermission     = "permission"
	keyLanguage       = "language"
)

// subscription is the device's push subscription.
type subscription struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	OptedIn bool   `json:"optedIn"`
}

func (s subscription) native() map[string]any {
	return map[string]any{"id": s.ID, "token": s.Token, "optedIn": s.OptedIn}
}

// loadDevice restores persisted ids, generating the ones that are missing.
// Called before the worker starts, so no locking.
func (n *Native) loadDevice() error {
	var err error
	s := &n.state
	if s.subscription.ID, err = n.getOrCreate(keySubscriptionID); err != nil {
		return err
	}
	if s.subscription.Token, err = n.getOrCreate(keyPushToken); err != nil {
		return err
	}
	if s.onesignalID, err = n.getOrCreate(keyOneSignalID); err != nil {
		return err
	}
	if s.externalID, err = n.lookup(keyExternalID); err != nil {
		return err
	}
	if s.appID, err = n.lookup(keyAppID); err != nil {
		return err
	}
	if s.language, err = n.lookup(keyLanguage); err != nil {
		return err
	}

	optedIn, err := n.lookup(keyOptedIn)
	if err != nil {
		return err
	}
	s.subscription.OptedIn, _ = strconv.ParseBool(optedIn)

	permission, err := n.lookup(keyPermission)
	if err != nil {
		return err
	}
	s.permissionAsked = permission != ""
	s.permission, _ = strconv.ParseBool(permission)
	return nil
}

// getOrCreate returns the persisted value for key, storing a new uuid on
// first use.
func (n *Native) getOrCreate(key string) (string, error) {
	v, err := n.lookup(key)
	if err != nil || v != "" {
		return v, err
	}
	v = uuid.New().String()
	if err := n.db.SetDeviceValue(key, v); err != nil {
		return "", fmt.Errorf("persist %s: %w", key, err)
	}
	return v, nil
}

// lookup returns the persisted value for key, or "" when unset.
func (n *Native) lookup(key string) (string, error) {
	v, err := n.db.DeviceValue(key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

// persist writes a device value. Failures are logged; the in-memory state
// stays authoritative for this process.
func (n *Native) persist(key, value string) {
	if err := n.db.SetDeviceValue(key, value); err != nil {
		n.logger.Warn("failed to persist device value", "key", key, "error", err)
	}
}
