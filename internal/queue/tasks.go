/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package queue carries ingest work between the HTTP surface, the filesystem
// watcher and the worker process over an asynq/Redis task queue.
package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// QueueName isolates netspeed tasks from anything else on the broker.
const QueueName = "netspeed"

// Task type names. The worker mux dispatches on these.
const (
	TypeIndexRebuild  = "index:rebuild"
	TypeIndexCurrent  = "index:current"
	TypeStatsMinimal  = "stats:minimal"
	TypeStatsDetailed = "stats:detailed"
	TypeFilesBackup   = "files:backup"
	TypeStatsRebuild  = "stats:rebuild"
)

// RebuildPayload triggers a full index rebuild.
type RebuildPayload struct {
	TaskID  string `json:"task_id"`
	Trigger string `json:"trigger"`
}

// ReindexCurrentPayload triggers a reindex of the current file only.
type ReindexCurrentPayload struct {
	TaskID string `json:"task_id"`
}

// SnapshotPayload names the file to snapshot; empty means the current file.
type SnapshotPayload struct {
	File string `json:"file,omitempty"`
}

// BackupPayload names the file to copy aside.
type BackupPayload struct {
	Path string `json:"path"`
}

// StatsRebuildPayload triggers a recomputation of all statistics snapshots.
type StatsRebuildPayload struct {
	Directory string `json:"directory,omitempty"`
}

func NewRebuildTask(taskID, trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(RebuildPayload{TaskID: taskID, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIndexRebuild, payload), nil
}

func NewReindexCurrentTask(taskID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexCurrentPayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIndexCurrent, payload), nil
}

func NewMinimalSnapshotTask(file string) (*asynq.Task, error) {
	payload, err := json.Marshal(SnapshotPayload{File: file})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStatsMinimal, payload), nil
}

func NewDetailedSnapshotTask(file string) (*asynq.Task, error) {
	payload, err := json.Marshal(SnapshotPayload{File: file})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStatsDetailed, payload), nil
}

func NewBackupTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackupPayload{Path: path})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFilesBackup, payload), nil
}

func NewStatsRebuildTask(directory string) (*asynq.Task, error) {
	payload, err := json.Marshal(StatsRebuildPayload{Directory: directory})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStatsRebuild, payload), nil
}
