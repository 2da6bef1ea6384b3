package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// main 是 studiod 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Fatalf("studiod 运行失败: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "studiod",
		Short:         "AutoViral studio daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (JSON 或 YAML)，默认读取 STUDIO_CONFIG")

	resolveConfig := func() string {
		if configPath != "" {
			return configPath
		}
		return os.Getenv("STUDIO_CONFIG")
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 REST API 与任务处理器",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := serve(cmd.Context(), resolveConfig())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	root.AddCommand(newCallCommand(resolveConfig))
	return root
}

func newCallCommand(resolveConfig func() string) *cobra.Command {
	var agentRef, message string
	cmd := &cobra.Command{
		Use:   "call",
		Short: "调用一次 agent 并输出结果信封",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if agentRef == "" || message == "" {
				return fmt.Errorf("--agent 与 --message 均不能为空")
			}
			return call(cmd.Context(), resolveConfig(), agentRef, message, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&agentRef, "agent", "a", "", "agent 种类 (如 script-planner) 或 agent id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "发送给 agent 的自然语言任务")
	return cmd
}
