package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "mealmebase",
	Short: "多智能体 RAG 对话网关",
	Long: `MealMeBase 是一个多租户 RAG 对话网关。

每个智能体拥有独立的知识库(Qdrant 集合)、系统提示词和可选的
Telegram 机器人连接,通过管理后台或机器人渠道进行知识问答。`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径(默认搜索 ./config.yaml)")
}
