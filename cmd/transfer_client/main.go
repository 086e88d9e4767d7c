package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpcpool "github.com/JoeShih716/go-transfer-ledger/pkg/grpc"
	pb "github.com/JoeShih716/go-transfer-ledger/proto"
)

func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	total := flag.Int("n", 10000, "number of transfers")
	concurrency := flag.Int("c", 100, "concurrent requests")
	amount := flag.String("amount", "1.00", "amount per transfer")
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	pool := grpcpool.NewPool(
		grpcpool.WithInterceptor(grpcpool.LoggingInterceptor(zl)),
		grpcpool.WithInterceptor(grpcpool.RetryInterceptor(3, 50*time.Millisecond)),
		grpcpool.WithCallOptions(grpc.CallContentSubtype(pb.CodecName)),
	)
	defer pool.Close()

	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := pb.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	// 兩個帳戶互轉，總額不變
	for _, name := range []string{"load-a", "load-b"} {
		_, err := c.CreateAccount(ctx, &pb.CreateAccountRequest{Name: name, Balance: "1000000.00"})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			log.Fatalf("create account %s: %v", name, err)
		}
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
		failed    atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	startTime := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			from, to := "load-a", "load-b"
			if idx%2 == 1 {
				from, to = to, from
			}
			resp, err := c.Transfer(ctx, &pb.TransferRequest{
				RefId:           uuid.New().String(),
				FromAccountName: from,
				ToAccountName:   to,
				Amount:          *amount,
			})
			switch {
			case err != nil:
				failed.Add(1)
			case !resp.Success:
				rejected.Add(1)
			default:
				succeeded.Add(1)
			}
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v\n", *total, elapsed)
	fmt.Printf("Succeeded: %d, Rejected: %d, Failed: %d\n", succeeded.Load(), rejected.Load(), failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())

	for _, name := range []string{"load-a", "load-b"} {
		resp, err := c.GetAccount(ctx, &pb.GetAccountRequest{Name: name})
		if err != nil {
			log.Printf("get account %s: %v", name, err)
			continue
		}
		fmt.Printf("%s balance: %s\n", name, resp.Account.Balance)
	}
}
