package model

// 問い合わせレコードのステータス。未設定（空文字）は "unhandled" として扱う。
// "deleted" はソフトデリート — レコードは残り、再分類できる。
const (
	StatusUnhandled = "unhandled"
	StatusProgress  = "progress"
	StatusDone      = "done"
	StatusDeleted   = "deleted"
)

// ContactSubmission represents a single record submitted via the contact form.
// Timestamp is part of the storage key, so it (and every field except Status)
// is immutable after creation.
type ContactSubmission struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // ISO-8601 (ミリ秒固定幅), キー順 = 時系列順
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Message   string `json:"message"`
	Status    string `json:"status,omitempty"`
}
