// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutil

import (
	"context"
	"sync"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// SentPush is a notification recorded by TestPushSender.
type SentPush struct {
	Config *a2a.PushConfig
	Event  a2a.Event
}

// TestPushSender records notifications instead of delivering them.
type TestPushSender struct {
	mu       sync.Mutex
	sent     []SentPush
	verified []string

	VerifyURLFunc func(ctx context.Context, config *a2a.PushConfig) error
	SendFunc      func(ctx context.Context, config *a2a.PushConfig, event a2a.Event) error
}

func (s *TestPushSender) VerifyURL(ctx context.Context, config *a2a.PushConfig) error {
	s.mu.Lock()
	s.verified = append(s.verified, config.URL)
	s.mu.Unlock()
	if s.VerifyURLFunc != nil {
		return s.VerifyURLFunc(ctx, config)
	}
	return nil
}

func (s *TestPushSender) Send(ctx context.Context, config *a2a.PushConfig, event a2a.Event) error {
	s.mu.Lock()
	s.sent = append(s.sent, SentPush{Config: config, Event: event})
	s.mu.Unlock()
	if s.SendFunc != nil {
		return s.SendFunc(ctx, config, event)
	}
	return nil
}

// SetVerifyError makes URL verification fail with the provided error.
func (s *TestPushSender) SetVerifyError(err error) *TestPushSender {
	s.VerifyURLFunc = func(ctx context.Context, config *a2a.PushConfig) error {
		return err
	}
	return s
}

// Sent returns a copy of the recorded notifications.
func (s *TestPushSender) Sent() []SentPush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentPush(nil), s.sent...)
}

// Verified returns the URLs passed to VerifyURL.
func (s *TestPushSender) Verified() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.verified...)
}

func NewTestPushSender() *TestPushSender {
	return &TestPushSender{}
}
