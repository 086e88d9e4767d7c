package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 記錄每次呼叫的方法、耗時與狀態碼
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		fields := []zap.Field{
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(fields, zap.Error(err))...)
			return err
		}
		logger.Debug("grpc call", fields...)
		return nil
	}
}

// RetryInterceptor 遇到 codes.Unavailable 時依伺服器的 RetryInfo 等待後重試
//
// 參數:
//
//	maxAttempts: 含第一次的呼叫次數上限
//	fallback: 伺服器沒有帶 RetryInfo 時的等待時間
func RetryInterceptor(maxAttempts int, fallback time.Duration) grpc.UnaryClientInterceptor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var err error
		for attempt := 1; ; attempt++ {
			err = invoker(ctx, method, req, reply, cc, opts...)
			if status.Code(err) != codes.Unavailable || attempt >= maxAttempts {
				return err
			}
			timer := time.NewTimer(RetryDelay(err, fallback))
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
	}
}

// RetryDelay 取出 status details 中的 RetryInfo，沒有則回傳 fallback
func RetryDelay(err error, fallback time.Duration) time.Duration {
	st, ok := status.FromError(err)
	if !ok {
		return fallback
	}
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			return ri.GetRetryDelay().AsDuration()
		}
	}
	return fallback
}
