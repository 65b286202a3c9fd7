package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	// 第2引数に"down"を指定すると最新のマイグレーションを1つ取り消す。
	CommandMigrate Command = "migrate"
	// CommandSeed は初期ユーザーを投入することを示す。
	CommandSeed Command = "seed"
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

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "seed":
		return CommandSeed
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// isMigrateDown はmigrateサブコマンドの取り消し指定かどうかを返す。
func isMigrateDown(args []string) bool {
	return len(args) > 1 && args[0] == "migrate" && args[1] == "down"
}
