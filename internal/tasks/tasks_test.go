package tasks

import "testing"

func TestTaskConstructors(t *testing.T) {
	tests := []struct {
		name     string
		build    func() (string, TaskPayload, error)
		wantType string
		want     TaskPayload
	}{
		{
			name: "inquiry notification",
			build: func() (string, TaskPayload, error) {
				task, err := NewInquiryNotificationTask("01INQ")
				if err != nil {
					return "", TaskPayload{}, err
				}
				p, err := ParseTaskPayload(task)
				return task.Type(), p, err
			},
			wantType: TypeInquiryNotification,
			want:     TaskPayload{InquiryID: "01INQ"},
		},
		{
			name: "newsletter welcome",
			build: func() (string, TaskPayload, error) {
				task, err := NewNewsletterWelcomeTask("a@example.com")
				if err != nil {
					return "", TaskPayload{}, err
				}
				p, err := ParseTaskPayload(task)
				return task.Type(), p, err
			},
			wantType: TypeNewsletterWelcome,
			want:     TaskPayload{Email: "a@example.com"},
		},
		{
			name: "prune sessions",
			build: func() (string, TaskPayload, error) {
				task, err := NewPruneSessionsTask()
				if err != nil {
					return "", TaskPayload{}, err
				}
				p, err := ParseTaskPayload(task)
				return task.Type(), p, err
			},
			wantType: TypePruneSessions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, got, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotType != tt.wantType {
				t.Errorf("type = %q, want %q", gotType, tt.wantType)
			}
			if got != tt.want {
				t.Errorf("payload = %+v, want %+v", got, tt.want)
			}
		})
	}
}
