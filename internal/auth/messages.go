package auth

// ErrCodeTooManyAttempts はログイン試行回数の上限に達した場合のエラーコード。
// IdPも同じコードを返す。
const ErrCodeTooManyAttempts = "TOO_MANY_ATTEMPTS_TRY_LATER"

var errorMessages = map[string]string{
	"EMAIL_NOT_FOUND":      "メールアドレスが正しくありません",
	"INVALID_PASSWORD":     "パスワードが正しくありません",
	"WEAK_PASSWORD":        "パスワードが短すぎます。最低でも6文字以上にしてください。",
	"INVALID_EMAIL":        "メールアドレスが正しくありません。",
	ErrCodeTooManyAttempts: "ログインの試行回数が多すぎます。しばらく待ってから再度お試しください。",
}

// ErrorMessage はIdPのエラーコードを画面表示用のメッセージに変換する。
// 対応表にないコードはそのまま返す。
func ErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return code
}
