package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "ledger.v1.LedgerService"

const (
	LedgerService_Transfer_FullMethodName          = "/ledger.v1.LedgerService/Transfer"
	LedgerService_QueryTransactions_FullMethodName = "/ledger.v1.LedgerService/QueryTransactions"
	LedgerService_GetAccount_FullMethodName        = "/ledger.v1.LedgerService/GetAccount"
	LedgerService_ListAccounts_FullMethodName      = "/ledger.v1.LedgerService/ListAccounts"
	LedgerService_CreateAccount_FullMethodName     = "/ledger.v1.LedgerService/CreateAccount"
	LedgerService_RenameAccount_FullMethodName     = "/ledger.v1.LedgerService/RenameAccount"
	LedgerService_DeleteAccount_FullMethodName     = "/ledger.v1.LedgerService/DeleteAccount"
)

// LedgerServiceClient 是 LedgerService 的客戶端 API
type LedgerServiceClient interface {
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error)
	QueryTransactions(ctx context.Context, in *QueryTransactionsRequest, opts ...grpc.CallOption) (*QueryTransactionsResponse, error)
	GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error)
	ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error)
	CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error)
	RenameAccount(ctx context.Context, in *RenameAccountRequest, opts ...grpc.CallOption) (*RenameAccountResponse, error)
	DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*DeleteAccountResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerServiceClient 所有呼叫固定使用 JSON codec
func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, LedgerService_Transfer_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) QueryTransactions(ctx context.Context, in *QueryTransactionsRequest, opts ...grpc.CallOption) (*QueryTransactionsResponse, error) {
	return invoke[QueryTransactionsResponse](ctx, c.cc, LedgerService_QueryTransactions_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error) {
	return invoke[GetAccountResponse](ctx, c.cc, LedgerService_GetAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	return invoke[ListAccountsResponse](ctx, c.cc, LedgerService_ListAccounts_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*CreateAccountResponse, error) {
	return invoke[CreateAccountResponse](ctx, c.cc, LedgerService_CreateAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) RenameAccount(ctx context.Context, in *RenameAccountRequest, opts ...grpc.CallOption) (*RenameAccountResponse, error) {
	return invoke[RenameAccountResponse](ctx, c.cc, LedgerService_RenameAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*DeleteAccountResponse, error) {
	return invoke[DeleteAccountResponse](ctx, c.cc, LedgerService_DeleteAccount_FullMethodName, in, opts)
}

// LedgerServiceServer 是 LedgerService 的伺服器 API
type LedgerServiceServer interface {
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	QueryTransactions(context.Context, *QueryTransactionsRequest) (*QueryTransactionsResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error)
	RenameAccount(context.Context, *RenameAccountRequest) (*RenameAccountResponse, error)
	DeleteAccount(context.Context, *DeleteAccountRequest) (*DeleteAccountResponse, error)
}

// UnimplementedLedgerServiceServer 嵌入後未實作的方法回傳 codes.Unimplemented
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}
func (UnimplementedLedgerServiceServer) QueryTransactions(context.Context, *QueryTransactionsRequest) (*QueryTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryTransactions not implemented")
}
func (UnimplementedLedgerServiceServer) GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAccount not implemented")
}
func (UnimplementedLedgerServiceServer) ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAccounts not implemented")
}
func (UnimplementedLedgerServiceServer) CreateAccount(context.Context, *CreateAccountRequest) (*CreateAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAccount not implemented")
}
func (UnimplementedLedgerServiceServer) RenameAccount(context.Context, *RenameAccountRequest) (*RenameAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RenameAccount not implemented")
}
func (UnimplementedLedgerServiceServer) DeleteAccount(context.Context, *DeleteAccountRequest) (*DeleteAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteAccount not implemented")
}

// RegisterLedgerServiceServer 註冊服務到 gRPC server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unary 產生 MethodHandler，負責解碼與攔截器串接
func unary[Req any, Resp any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerService_ServiceDesc 是 LedgerService 的 grpc.ServiceDesc
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transfer", Handler: unary(LedgerService_Transfer_FullMethodName, LedgerServiceServer.Transfer)},
		{MethodName: "QueryTransactions", Handler: unary(LedgerService_QueryTransactions_FullMethodName, LedgerServiceServer.QueryTransactions)},
		{MethodName: "GetAccount", Handler: unary(LedgerService_GetAccount_FullMethodName, LedgerServiceServer.GetAccount)},
		{MethodName: "ListAccounts", Handler: unary(LedgerService_ListAccounts_FullMethodName, LedgerServiceServer.ListAccounts)},
		{MethodName: "CreateAccount", Handler: unary(LedgerService_CreateAccount_FullMethodName, LedgerServiceServer.CreateAccount)},
		{MethodName: "RenameAccount", Handler: unary(LedgerService_RenameAccount_FullMethodName, LedgerServiceServer.RenameAccount)},
		{MethodName: "DeleteAccount", Handler: unary(LedgerService_DeleteAccount_FullMethodName, LedgerServiceServer.DeleteAccount)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}
