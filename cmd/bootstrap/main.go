package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/wire"
	"content-gen-api/pkg/utils"
)

const defaultDemoLimit = 10

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层（仅 PostgreSQL）
	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 迁移表结构
	if err := dataLayer.PgClient.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	fmt.Println("Schema migrated")

	// 4. 创建演示用户
	email := os.Getenv("BOOTSTRAP_USER_EMAIL")
	if email == "" {
		email = "demo@example.com"
	}
	limit := defaultDemoLimit
	if v := os.Getenv("BOOTSTRAP_USER_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatalf("invalid BOOTSTRAP_USER_LIMIT: %q", v)
		}
		limit = n
	}

	user, err := dataLayer.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("failed to look up user: %v", err)
	}
	if user == nil {
		fmt.Printf("Creating demo user: %s...\n", email)
		user = entity.NewUser(email, "Demo User", entity.PlanTypeFree, limit)
		if err := dataLayer.UserRepo.Create(ctx, user); err != nil {
			log.Fatalf("failed to create demo user: %v", err)
		}
	} else {
		fmt.Printf("Demo user already exists with ID: %s\n", user.ID)
	}

	// 5. 签发访问令牌
	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
	token, err := jwtManager.IssueToken(user.ID, string(user.PlanType), cfg.Security.JWT.Expiration)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Println("Bootstrap completed successfully!")
	fmt.Printf("User ID:  %s\n", user.ID)
	fmt.Printf("Quota:    %d/%d\n", user.RequestsUsed, user.TotalAllowance())
	fmt.Printf("Token:    %s\n", token)
}
