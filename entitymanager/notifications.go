// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package entitymanager

import (
	"fmt"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about committed and reverted blocks.
type NotificationCallback func(*Notification)

const (
	// NTBlockCommitted indicates a block was indexed and committed.
	NTBlockCommitted NotificationType = iota

	// NTBlockReverted indicates blocks were undone following a reorg.
	NTBlockReverted
)

var notificationTypeStrings = map[NotificationType]string{
	NTBlockCommitted: "NTBlockCommitted",
	NTBlockReverted:  "NTBlockReverted",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification is sent to subscribers after the database transaction of a
// block or revert commits. Data depends on the type as follows:
//   - NTBlockCommitted: *BlockSummary
//   - NTBlockReverted:  *RevertSummary
type Notification struct {
	Type NotificationType
	Data interface{}
}

// Subscribe registers a callback to be executed after every committed
// block and every revert. Callbacks run on their own goroutine and must
// not assume they observe blocks in order.
func (em *EntityManager) Subscribe(callback NotificationCallback) {
	em.notificationsLock.Lock()
	em.notifications = append(em.notifications, callback)
	em.notificationsLock.Unlock()
}

func (em *EntityManager) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	em.notificationsLock.RLock()
	for _, callback := range em.notifications {
		go callback(&n)
	}
	em.notificationsLock.RUnlock()
}
