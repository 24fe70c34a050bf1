package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/dto"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/repository"
	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/service"
	"github.com/sohamsontakkespotify-afk/erp--sub001/pkg/notify"
)

var absentDate string

var markAbsentCmd = &cobra.Command{
	Use:   "mark-absent",
	Short: "为指定日期无考勤记录的在职员工补记缺勤",
	Long:  `一次性执行缺勤补记（与每日定时任务逻辑相同），--date 为空时取考勤时区的当天。`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadBase()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := openDB(cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB(db)

		store := notify.New(cfg.Notification.Capacity)
		defer store.Close()

		svc := service.NewService(cfg, repository.NewRepository(db), service.Deps{Store: store}, logger)
		resp, err := svc.Attendance.MarkAbsent(cmd.Context(), &dto.MarkAbsentRequest{Date: absentDate})
		if err != nil {
			return err
		}

		logger.Info("缺勤补记完成", zap.String("date", resp.Date), zap.Int64("created", resp.Created))
		return nil
	},
}

func init() {
	markAbsentCmd.Flags().StringVar(&absentDate, "date", "", "日期 YYYY-MM-DD")
	rootCmd.AddCommand(markAbsentCmd)
}
