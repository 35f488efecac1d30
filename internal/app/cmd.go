package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はサイトマップの定期再生成ワーカーとして起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed はサンプルのカテゴリ・タグ・記事を投入することを示す。
	CommandSeed Command = "seed"
	// CommandSignup はIdPに管理者アカウントを作成することを示す。
	CommandSignup Command = "signup"
	// CommandRoutes はルーティング一覧をMarkdownで出力することを示す。
	CommandRoutes Command = "routes"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandServe, CommandMigrate, CommandSeed,
		CommandSignup, CommandRoutes, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
