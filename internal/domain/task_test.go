package domain

import (
	"math"
	"testing"
)

func TestTaskSpecTotalFund(t *testing.T) {
	tests := []struct {
		name string
		spec TaskSpec
		want int64
		ok   bool
	}{
		{name: "valid", spec: TaskSpec{PointsPerCompletion: 5, MaxCompletions: 3}, want: 15, ok: true},
		{name: "zero points", spec: TaskSpec{PointsPerCompletion: 0, MaxCompletions: 3}},
		{name: "negative completions", spec: TaskSpec{PointsPerCompletion: 5, MaxCompletions: -1}},
		{name: "overflow", spec: TaskSpec{PointsPerCompletion: math.MaxInt64 / 2, MaxCompletions: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.spec.TotalFund()
			if ok != tt.ok || got != tt.want {
				t.Fatalf("TotalFund() = (%d, %t), want (%d, %t)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTaskCanPayOut(t *testing.T) {
	task := Task{PointsPerCompletion: 5, MaxCompletions: 3, CompletionsCount: 2, Fund: 5, Status: TaskStatusActive}
	if !task.CanPayOut() || !task.EscrowBalanced() {
		t.Fatal("expected last completion to be payable")
	}

	task.CompletionsCount, task.Fund, task.Status = 3, 0, TaskStatusExhausted
	if task.CanPayOut() {
		t.Fatal("exhausted task must not pay out")
	}
	if !task.EscrowBalanced() {
		t.Fatal("escrow must stay balanced after exhaustion")
	}
}

func TestPromotionSettingsCostFor(t *testing.T) {
	settings := DefaultPromotionSettings()
	tests := []struct {
		name string
		task Task
		want int64
	}{
		{name: "action cost wins", task: Task{Platform: "youtube", Action: "like"}, want: 20},
		{name: "platform cost", task: Task{Platform: "tiktok", Action: "video"}, want: 50},
		{name: "global fallback", task: Task{Platform: "other", Action: "click"}, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settings.CostFor(tt.task); got != tt.want {
				t.Fatalf("CostFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
