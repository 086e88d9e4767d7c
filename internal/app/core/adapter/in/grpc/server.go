package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
	pb "github.com/JoeShih716/go-transfer-ledger/proto"
)

// DefaultRetryDelay 是 contention 時建議客戶端等待的時間
const DefaultRetryDelay = 50 * time.Millisecond

// errorDomain 放在 errdetails.ErrorInfo.Domain
const errorDomain = "ledger.v1"

type GrpcServer struct {
	pb.UnimplementedLedgerServiceServer
	core       *usecase.CoreUseCase
	logger     *zap.Logger
	retryDelay time.Duration
}

// ServerOption 定義 GrpcServer 的配置選項函數
type ServerOption func(*GrpcServer)

func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *GrpcServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryDelay 設定回傳給客戶端的 RetryInfo 延遲
func WithRetryDelay(d time.Duration) ServerOption {
	return func(s *GrpcServer) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func NewGrpcServer(core *usecase.CoreUseCase, opts ...ServerOption) *GrpcServer {
	s := &GrpcServer{
		core:       core,
		logger:     zap.NewNop(),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer 業務拒絕以 Success=false 回傳 (Soft Failure)，
// contention 與儲存失敗則回傳 gRPC status
func (s *GrpcServer) Transfer(ctx context.Context, req *pb.TransferRequest) (*pb.TransferResponse, error) {
	// 1. UUID 解析，空字串由引擎產生
	var refID uuid.UUID
	if req.RefId != "" {
		u, err := uuid.Parse(req.RefId)
		if err != nil {
			return &pb.TransferResponse{
				Success: false,
				Reason:  string(domain.ReasonInvalidReference),
				Message: "invalid ref_id: " + err.Error(),
			}, nil
		}
		refID = u
	}

	// 2. 執行轉帳
	tran, err := s.core.Transfers.Transfer(ctx, domain.TransferRequest{
		RefID:           refID,
		FromAccountName: req.FromAccountName,
		ToAccountName:   req.ToAccountName,
		Amount:          req.Amount,
	})
	msg := domain.TransferMessage(err, req.FromAccountName, req.ToAccountName)
	if err != nil {
		reason := domain.ReasonOf(err)
		if reason.Business() {
			return &pb.TransferResponse{
				Success: false,
				Reason:  string(reason),
				Which:   domain.WhichOf(err),
				Message: msg,
			}, nil
		}
		return nil, s.statusError(msg, err)
	}

	resp := &pb.TransferResponse{
		Success:       true,
		TransactionId: tran.ID,
		RefId:         tran.RefID.String(),
		Amount:        domain.FormatAmount(tran.Amount),
		Message:       msg,
	}

	// 3. [Optional] 取得轉出帳戶最新餘額 (Best Effort)
	if acc, err := s.core.Accounts.Get(ctx, req.FromAccountName); err == nil {
		resp.FromBalance = domain.FormatAmount(acc.Balance)
	}
	return resp, nil
}

func (s *GrpcServer) QueryTransactions(ctx context.Context, req *pb.QueryTransactionsRequest) (*pb.QueryTransactionsResponse, error) {
	views, err := s.core.Ledger.Query(ctx, req.FromAccountName, req.ToAccountName)
	if err != nil {
		if errors.Is(err, domain.ErrSameAccount) {
			return nil, status.Error(codes.InvalidArgument, "The to and from accounts cannot be the same")
		}
		return nil, s.statusError(err.Error(), err)
	}
	resp := &pb.QueryTransactionsResponse{Transactions: make([]*pb.Transaction, 0, len(views))}
	for _, v := range views {
		resp.Transactions = append(resp.Transactions, &pb.Transaction{
			TransactionId:   v.ID,
			RefId:           v.RefID.String(),
			FromAccountName: v.FromAccountName,
			ToAccountName:   v.ToAccountName,
			Amount:          domain.FormatAmount(v.Amount),
			Timestamp:       v.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	resp.Message = domain.QueryMessage(len(resp.Transactions))
	return resp, nil
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *pb.GetAccountRequest) (*pb.GetAccountResponse, error) {
	acc, err := s.core.Accounts.Get(ctx, req.Name)
	if err != nil {
		return nil, s.accountError(err)
	}
	return &pb.GetAccountResponse{Account: toAccount(acc)}, nil
}

func (s *GrpcServer) ListAccounts(ctx context.Context, _ *pb.ListAccountsRequest) (*pb.ListAccountsResponse, error) {
	accounts, err := s.core.Accounts.List(ctx)
	if err != nil {
		return nil, s.accountError(err)
	}
	resp := &pb.ListAccountsResponse{Accounts: make([]*pb.Account, 0, len(accounts))}
	for _, acc := range accounts {
		resp.Accounts = append(resp.Accounts, toAccount(acc))
	}
	return resp, nil
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *pb.CreateAccountRequest) (*pb.CreateAccountResponse, error) {
	acc, err := s.core.Accounts.Create(ctx, req.Name, req.Balance)
	if err != nil {
		return nil, s.accountError(err)
	}
	return &pb.CreateAccountResponse{Account: toAccount(acc)}, nil
}

func (s *GrpcServer) RenameAccount(ctx context.Context, req *pb.RenameAccountRequest) (*pb.RenameAccountResponse, error) {
	acc, err := s.core.Accounts.Rename(ctx, req.Name, req.NewName)
	if err != nil {
		return nil, s.accountError(err)
	}
	return &pb.RenameAccountResponse{Account: toAccount(acc)}, nil
}

func (s *GrpcServer) DeleteAccount(ctx context.Context, req *pb.DeleteAccountRequest) (*pb.DeleteAccountResponse, error) {
	if err := s.core.Accounts.Delete(ctx, req.Name); err != nil {
		return nil, s.accountError(err)
	}
	return &pb.DeleteAccountResponse{}, nil
}

// accountError 帳戶 CRUD 的業務錯誤直接對應 status code
func (s *GrpcServer) accountError(err error) error {
	switch domain.ReasonOf(err) {
	case domain.ReasonAccountNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.ReasonAccountExists:
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.ReasonInvalidName, domain.ReasonInvalidAmount, domain.ReasonInvalidReference:
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return s.statusError(err.Error(), err)
}

// statusError 把 contention 與儲存失敗轉成帶 details 的 gRPC status
func (s *GrpcServer) statusError(msg string, err error) error {
	reason := domain.ReasonOf(err)
	if reason.Retryable() {
		st := status.New(codes.Unavailable, msg)
		detailed, detailErr := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(s.retryDelay)})
		if detailErr != nil {
			return st.Err()
		}
		return detailed.Err()
	}

	s.logger.Error("request failed", zap.String("reason", string(reason)), zap.Error(err))
	st := status.New(codes.Internal, msg)
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(reason),
		Domain: errorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

func toAccount(acc *domain.Account) *pb.Account {
	out := &pb.Account{
		AccountId: acc.ID,
		Name:      acc.Name,
		Balance:   domain.FormatAmount(acc.Balance),
	}
	if !acc.CreatedAt.IsZero() {
		out.CreatedAt = acc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}
