// Command jwtpizza は認証・セッション・ロール認可APIサーバーを起動する。
//
// 使い方:
//
//	jwtpizza [serve|migrate [down]|seed|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/jwtpizza/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
