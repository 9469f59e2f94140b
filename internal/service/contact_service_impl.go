package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hacs-web/backend/internal/model"
	"github.com/hacs-web/backend/internal/repository"
	"github.com/hacs-web/backend/pkg/resend"
)

// timestampLayout は ISO-8601 ミリ秒固定幅（UTC 前提）。
// 固定幅なのでキーの辞書順がそのまま時系列順になる。
const timestampLayout = "2006-01-02T15:04:05.000Z"

// notifyTimeout は通知メール送信の打ち切り時間。リクエスト本体とは独立。
const notifyTimeout = 10 * time.Second

// NotifyConfig は問い合わせ通知メールの宛先設定
type NotifyConfig struct {
	From string
	To   []string
}

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo   repository.ContactRepository
	mailer resend.Client // nil の場合は通知メール無効
	notify NotifyConfig
}

// NewContactService creates a ContactService backed by the given repository.
// mailer may be nil, which disables the notification side effect.
func NewContactService(repo repository.ContactRepository, mailer resend.Client, notify NotifyConfig) ContactService {
	return &contactServiceImpl{repo: repo, mailer: mailer, notify: notify}
}

// Submit persists a new submission under a fresh (timestamp, id) composite key
// and kicks off the notification email. The email is fire-and-forget: a send
// failure is logged and never surfaced to the submitter.
func (s *contactServiceImpl) Submit(ctx context.Context, sub *model.ContactSubmission) error {
	sub.ID = uuid.NewString()
	sub.Timestamp = time.Now().UTC().Format(timestampLayout)
	sub.Status = "" // 未設定 = unhandled

	if err := s.repo.Save(ctx, sub); err != nil {
		return err
	}

	if s.mailer != nil {
		// リクエストの context には紐付けない。レスポンス返却後も送信を続ける。
		notification := *sub
		go s.sendNotification(&notification)
	}
	return nil
}

// List returns all submissions, newest first.
func (s *contactServiceImpl) List(ctx context.Context) ([]*model.ContactSubmission, error) {
	return s.repo.List(ctx)
}

// UpdateStatus changes the status of a submission, preserving all other fields.
func (s *contactServiceImpl) UpdateStatus(ctx context.Context, timestamp, id, status string) (*model.ContactSubmission, error) {
	return s.repo.UpdateStatus(ctx, timestamp, id, status)
}

// sendNotification sends the admin notification email for a new submission.
func (s *contactServiceImpl) sendNotification(sub *model.ContactSubmission) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	id, err := s.mailer.Send(ctx, resend.Message{
		From:    s.notify.From,
		To:      s.notify.To,
		Subject: "New Contact: " + sub.Name,
		HTML:    notificationHTML(sub),
	})
	if err != nil {
		slog.Error("contact notification email failed", "submission_id", sub.ID, "error", err)
		return
	}
	slog.Info("contact notification email sent", "submission_id", sub.ID, "message_id", id)
}

// notificationHTML renders the notification body. User-supplied fields are
// escaped before interpolation.
func notificationHTML(sub *model.ContactSubmission) string {
	orDash := func(v string) string {
		if v == "" {
			return "-"
		}
		return html.EscapeString(v)
	}
	return fmt.Sprintf(`
<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
<p><strong>Company:</strong> %s</p>
<p><strong>Phone:</strong> %s</p>
<br/>
<p><strong>Message:</strong></p>
<p style="white-space: pre-wrap;">%s</p>`,
		html.EscapeString(sub.Name),
		html.EscapeString(sub.Email),
		orDash(sub.Company),
		orDash(sub.Phone),
		html.EscapeString(sub.Message),
	)
}
