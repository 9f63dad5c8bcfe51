// Package template provides mail body template rendering.
//
// 지원하는 변수 형식:
//
//	{{user.name}}, {{user.email}}
//	{{link.url}}, {{link.expires_at}}
package template

import (
	"strings"
	"time"

	"github.com/kube-rca/todo/internal/model"
)

const (
	VerificationSubject = "Verify your email"
	VerificationBody    = "Hi {{user.name}},\n\n" +
		"Please confirm {{user.email}} by opening the link below:\n\n" +
		"{{link.url}}\n"

	PasswordResetSubject = "Reset your password"
	PasswordResetBody    = "Hi {{user.name}},\n\n" +
		"A password reset was requested for {{user.email}}.\n" +
		"Open the link below before {{link.expires_at}} to choose a new password:\n\n" +
		"{{link.url}}\n\n" +
		"If you did not request this, ignore this email.\n"
)

// UserData - 템플릿 렌더링에 사용할 사용자 데이터
type UserData struct {
	Name  string
	Email string
}

// LinkData - 메일에 포함되는 일회용 링크
type LinkData struct {
	URL       string
	ExpiresAt time.Time
}

// UserDataFromModel - model.User에서 UserData 생성
func UserDataFromModel(u *model.User) UserData {
	return UserData{Name: u.Name, Email: u.Email}
}

// RenderBody - 메일 body 템플릿의 변수를 실제 값으로 치환
//
// nil로 전달된 항목의 변수는 빈 문자열로 치환됩니다.
func RenderBody(body string, user *UserData, link *LinkData) string {
	pairs := make([]string, 0, 8)

	if user != nil {
		pairs = append(pairs,
			"{{user.name}}", user.Name,
			"{{user.email}}", user.Email,
		)
	} else {
		pairs = append(pairs,
			"{{user.name}}", "",
			"{{user.email}}", "",
		)
	}

	if link != nil {
		expiresAt := ""
		if !link.ExpiresAt.IsZero() {
			expiresAt = link.ExpiresAt.UTC().Format(time.RFC3339)
		}
		pairs = append(pairs,
			"{{link.url}}", link.URL,
			"{{link.expires_at}}", expiresAt,
		)
	} else {
		pairs = append(pairs,
			"{{link.url}}", "",
			"{{link.expires_at}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}
