package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/threadline/storefront/internal/app"
	"github.com/threadline/storefront/internal/config"
	"github.com/threadline/storefront/internal/logger"
	"github.com/threadline/storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiCyan  = "\033[36m"
)

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	printStartupBanner(mode)

	// .env 仅用于本地开发，缺失时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
	}

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	release := cfg.Server.Mode == "release"
	checkSecret(stdLog.Fatalf, stdLog.Printf, release, "jwt.secret", cfg.JWT.SecretKey)
	checkSecret(stdLog.Fatalf, stdLog.Printf, release, "user_jwt.secret", cfg.UserJWT.SecretKey)
	if strings.TrimSpace(cfg.Razorpay.WebhookSecret) == "" {
		logger.Warnw("razorpay_webhook_secret_missing")
	}
	if strings.TrimSpace(cfg.Cron.Secret) == "" {
		logger.Warnw("cron_secret_missing", "effect", "cleanup requires admin token")
	}

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, !release); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	defaultAdminUser := os.Getenv("SF_DEFAULT_ADMIN_USERNAME")
	defaultAdminPass := os.Getenv("SF_DEFAULT_ADMIN_PASSWORD")
	if release && defaultAdminPass == "" {
		stdLog.Printf("警告: 未设置 SF_DEFAULT_ADMIN_PASSWORD，已跳过默认管理员初始化")
	} else if err := models.InitDefaultAdmin(defaultAdminUser, defaultAdminPass); err != nil {
		stdLog.Printf("警告: 初始化默认管理员失败: %v", err)
	}

	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner(mode string) {
	fmt.Println(ansiCyan + ansiBold + "Threadline Storefront API" + ansiReset)
	fmt.Println(ansiDim + "mode=" + mode + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func checkSecret(fatalf, printf func(string, ...interface{}), release bool, name, secret string) {
	if !isWeakSecret(secret) {
		return
	}
	if release {
		fatalf("%s 过弱或仍为默认值，请在生产环境中配置强随机密钥", name)
		return
	}
	printf("警告: %s 过弱或仍为默认值，建议在生产环境中更换", name)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
