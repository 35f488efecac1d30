package refresh

import "time"

// initialRetryDelay は失敗直後の再実行までの待ち時間。
const initialRetryDelay = 30 * time.Second

// NextDelay は次回サイクルまでの待ち時間を返す。
// 連続失敗中は30秒から2倍ずつ延ばし、通常の実行間隔を上限とする。
func NextDelay(interval time.Duration, consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 || interval <= initialRetryDelay {
		return interval
	}
	delay := initialRetryDelay
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if delay >= interval {
			return interval
		}
	}
	return delay
}
