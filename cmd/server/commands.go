package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/infrastructure/config"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "为用户所有户外浇水提醒批量计算天气调整",
	Long: `读取用户所有植物的启用提醒，拉取天气预报并生成待确认的调整建议。
适合由定时任务调用，例如每天早上执行一次。

Example:
  plantcare adjust --user u-123`,
	RunE: runAdjust,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "在命令行中提问养护问题",
	Long: `Example:
  plantcare ask --plant Monstera --question "How often should I water it?" --city "Austin, TX"`,
	RunE: runAsk,
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "列出用户今天到期的提醒和统计",
	RunE:  runDue,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "为用户签发访问令牌",
	RunE:  runToken,
}

func init() {
	adjustCmd.Flags().String("user", "", "用户ID (必填)")
	adjustCmd.Flags().Duration("timeout", 2*time.Minute, "批量调整超时时间")
	_ = adjustCmd.MarkFlagRequired("user")

	askCmd.Flags().String("plant", "", "植物名称 (必填)")
	askCmd.Flags().String("question", "", "问题 (必填)")
	askCmd.Flags().String("city", "", "城市，如 \"Austin, TX\"")
	askCmd.Flags().String("context", "", "养护环境: indoor_potted, outdoor_potted, outdoor_ground, greenhouse")
	_ = askCmd.MarkFlagRequired("plant")
	_ = askCmd.MarkFlagRequired("question")

	dueCmd.Flags().String("user", "", "用户ID (必填)")
	_ = dueCmd.MarkFlagRequired("user")

	tokenCmd.Flags().String("user", "", "用户ID (必填)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "令牌有效期")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runAdjust(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.Close()

	reminderService, ok := deps.container.GetService("reminder").(services.InterfaceReminderService)
	if !ok {
		return fmt.Errorf("提醒服务不可用")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := reminderService.BatchAdjust(ctx, userID)
	if err != nil {
		return fmt.Errorf("批量调整失败: %w", err)
	}
	return printJSON(cmd, stats)
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := models.AnswerRequest{CallerKey: "cli"}
	req.PlantName, _ = cmd.Flags().GetString("plant")
	req.Question, _ = cmd.Flags().GetString("question")
	req.City, _ = cmd.Flags().GetString("city")
	req.CareContext, _ = cmd.Flags().GetString("context")

	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.Close()

	orchestrator, ok := deps.container.GetService("advisor").(*advisor.Orchestrator)
	if !ok {
		return fmt.Errorf("问答服务不可用")
	}

	resp, err := orchestrator.Answer(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func runDue(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")

	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.Close()

	reminderService, ok := deps.container.GetService("reminder").(services.InterfaceReminderService)
	if !ok {
		return fmt.Errorf("提醒服务不可用")
	}

	due, err := reminderService.DueReminders(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("查询到期提醒失败: %w", err)
	}
	stats, err := reminderService.ReminderStats(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("统计提醒失败: %w", err)
	}
	return printJSON(cmd, map[string]interface{}{"due": due, "stats": stats})
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	// 签发令牌只需要密钥，不连接数据库
	jwtService := services.NewJWTService(config.GetConfig())
	token, err := jwtService.GenerateToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
