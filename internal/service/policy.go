package service

// Policy 排查阈值
type Policy struct {
	// ArchiveRatio 压缩包占比达到该值（含）即判定可疑
	ArchiveRatio float64
	// EscalationCeiling 升级检查的文件大小上限（不含），单位字节
	EscalationCeiling int64
	// MaxAccountAgeDays 账号年龄闸门，0 表示关闭
	MaxAccountAgeDays int
}

// DefaultPolicy 默认阈值
func DefaultPolicy() Policy {
	return Policy{
		ArchiveRatio:      0.5,
		EscalationCeiling: 3_500_000,
		MaxAccountAgeDays: 0,
	}
}
