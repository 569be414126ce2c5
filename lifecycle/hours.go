package lifecycle

import (
	"time"

	"review-hub/models"
)

// WithinBusinessHours 判断当前时间是否落在租户配置的发布窗口内
// 未启用限制时恒为 true；配置不合法时按不限制处理（宁可发出去也不卡死队列）
func WithinBusinessHours(bh models.BusinessHours, now time.Time) bool {
	if !bh.Enabled {
		return true
	}

	loc, err := time.LoadLocation(bh.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	start, err := time.Parse("15:04", bh.Start)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", bh.End)
	if err != nil {
		return true
	}

	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	// 跨午夜的窗口（如 22:00-06:00）
	if endMin < startMin {
		return minutes >= startMin || minutes < endMin
	}
	return minutes >= startMin && minutes < endMin
}
