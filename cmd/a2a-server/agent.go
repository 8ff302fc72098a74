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

package main

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv"
	"github.com/a2aproject/a2a-taskserver/log"
)

const echoChunkSize = 5

// echoRuntime streams the text of the triggering message back in artifact chunks.
// A message starting with "?" moves the task to input-required, the next message resumes it.
type echoRuntime struct {
	chunkDelay time.Duration
}

var _ a2asrv.AgentRuntime = (*echoRuntime)(nil)

func (r *echoRuntime) Process(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	if params.Message.Metadata["direct"] == true {
		return a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: textOf(params.Message)}), nil
	}
	return &a2a.Task{}, nil
}

func (r *echoRuntime) Execute(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		var text string
		if len(task.History) > 0 {
			text = textOf(task.History[len(task.History)-1])
		}
		log.Info(ctx, "echo execution started", "task_id", task.ID, "length", len(text))

		if question, ok := strings.CutPrefix(text, "?"); ok {
			prompt := a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: "What should I answer to: " + question})
			yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateInputRequired, prompt), nil)
			return
		}

		var artifactID a2a.ArtifactID
		runes := []rune(text)
		for i := 0; i < len(runes); i += echoChunkSize {
			select {
			case <-time.After(r.chunkDelay):
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}

			chunk := a2a.TextPart{Text: string(runes[i:min(i+echoChunkSize, len(runes))])}
			var event *a2a.TaskArtifactUpdateEvent
			if artifactID == "" {
				event = a2a.NewArtifactEvent(task, chunk)
				artifactID = event.Artifact.ID
			} else {
				event = a2a.NewArtifactUpdateEvent(task, artifactID, chunk)
			}
			if !yield(event, nil) {
				return
			}
		}

		done := a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: "Echo finished."})
		yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, done), nil)
	}
}

func textOf(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(a2a.TextPart); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
