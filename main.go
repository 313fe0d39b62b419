// @title Lingua Progress API
// @version 1.0
// @description 语言学习进度引擎：间隔复习调度、连续学习天数与能力等级评估。

// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"fmt"
	"lingua_progress/internal/app"
	"lingua_progress/internal/config"
	"lingua_progress/pkg/logger"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func loadConfig(dir string, forceMigrate, migrateOnly bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	// 设置迁移标志
	cfg.ForceMigrate = forceMigrate || migrateOnly
	cfg.MigrateOnly = migrateOnly
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	var configDir string
	var migrate bool

	root := &cobra.Command{
		Use:           "lingua-progress",
		Short:         "语言学习进度引擎 HTTP 服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir, migrate, false)
			if err != nil {
				return err
			}
			app.NewApp(cfg).Run()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "configs", "配置文件所在目录")
	root.Flags().BoolVar(&migrate, "migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "只执行数据库迁移，完成后退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir, true, true)
			if err != nil {
				return err
			}
			application := app.NewApp(cfg)
			defer application.Close()
			logger.Log.Info("Database migration finished", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	})

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Log.Sync()
}
