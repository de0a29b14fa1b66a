/*
 *
 * protobridge - protobuf definition graphs and write-handler caches
 * Copyright (C) 2026 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package protoload

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	reflectpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// fakeReflection answers reflection requests from a fixed set of files.
type fakeReflection struct {
	services []string
	bySymbol map[string][]*descriptorpb.FileDescriptorProto
	byName   map[string]*descriptorpb.FileDescriptorProto
	sendErr  error

	pending *reflectpb.ServerReflectionRequest
	asked   []string
}

func (f *fakeReflection) Send(req *reflectpb.ServerReflectionRequest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.pending = req
	return nil
}

func (f *fakeReflection) Recv() (*reflectpb.ServerReflectionResponse, error) {
	req := f.pending
	f.pending = nil
	switch r := req.GetMessageRequest().(type) {
	case *reflectpb.ServerReflectionRequest_ListServices:
		resp := &reflectpb.ListServiceResponse{}
		for _, s := range f.services {
			resp.Service = append(resp.Service, &reflectpb.ServiceResponse{Name: s})
		}
		return &reflectpb.ServerReflectionResponse{
			MessageResponse: &reflectpb.ServerReflectionResponse_ListServicesResponse{ListServicesResponse: resp},
		}, nil
	case *reflectpb.ServerReflectionRequest_FileContainingSymbol:
		f.asked = append(f.asked, r.FileContainingSymbol)
		return fileResponse(f.bySymbol[r.FileContainingSymbol]...)
	case *reflectpb.ServerReflectionRequest_FileByFilename:
		f.asked = append(f.asked, r.FileByFilename)
		fdp, ok := f.byName[r.FileByFilename]
		if !ok {
			return &reflectpb.ServerReflectionResponse{
				MessageResponse: &reflectpb.ServerReflectionResponse_ErrorResponse{
					ErrorResponse: &reflectpb.ErrorResponse{ErrorCode: 5, ErrorMessage: "not found"},
				},
			}, nil
		}
		return fileResponse(fdp)
	default:
		return nil, errors.New("unexpected request")
	}
}

func fileResponse(fdps ...*descriptorpb.FileDescriptorProto) (*reflectpb.ServerReflectionResponse, error) {
	resp := &reflectpb.FileDescriptorResponse{}
	for _, fdp := range fdps {
		raw, err := proto.Marshal(fdp)
		if err != nil {
			return nil, err
		}
		resp.FileDescriptorProto = append(resp.FileDescriptorProto, raw)
	}
	return &reflectpb.ServerReflectionResponse{
		MessageResponse: &reflectpb.ServerReflectionResponse_FileDescriptorResponse{FileDescriptorResponse: resp},
	}, nil
}

func testFiles() (svc, common *descriptorpb.FileDescriptorProto) {
	common = &descriptorpb.FileDescriptorProto{
		Name:    proto.String("common.proto"),
		Package: proto.String("test"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Empty"),
		}},
	}
	svc = &descriptorpb.FileDescriptorProto{
		Name:       proto.String("svc.proto"),
		Package:    proto.String("test"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"common.proto"},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Svc"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("Call"),
				InputType:  proto.String(".test.Empty"),
				OutputType: proto.String(".test.Empty"),
			}},
		}, {
			Name: proto.String("Other"),
		}},
	}
	return svc, common
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReflectFileDescriptors(t *testing.T) {
	t.Parallel()

	t.Run("MissingDependencyIsFetched", func(t *testing.T) {
		t.Parallel()
		svc, common := testFiles()
		fake := &fakeReflection{
			services: []string{"test.Svc", "test.Other"},
			bySymbol: map[string][]*descriptorpb.FileDescriptorProto{"test.Svc": {svc}, "test.Other": {svc}},
			byName:   map[string]*descriptorpb.FileDescriptorProto{"common.proto": common},
		}
		fdset, err := reflectFileDescriptors(fake)
		require.NoError(t, err)
		require.Len(t, fdset.File, 2)
		assert.Equal(t, []string{"test.Svc", "test.Other", "common.proto"}, fake.asked)

		files, err := newFiles(fdset)
		require.NoError(t, err)
		_, err = files.FindDescriptorByName("test.Svc.Call")
		require.NoError(t, err)
	})

	t.Run("DependencyNotFound", func(t *testing.T) {
		t.Parallel()
		svc, _ := testFiles()
		fake := &fakeReflection{
			services: []string{"test.Svc"},
			bySymbol: map[string][]*descriptorpb.FileDescriptorProto{"test.Svc": {svc}},
		}
		_, err := reflectFileDescriptors(fake)
		require.ErrorContains(t, err, `can't get dependency "common.proto"`)
	})

	t.Run("SendError", func(t *testing.T) {
		t.Parallel()
		_, err := reflectFileDescriptors(&fakeReflection{sendErr: errors.New("broken pipe")})
		require.ErrorContains(t, err, "can't list services")
	})
}

func TestReflectServer(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	reflection.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	files, err := Reflect(ctx, conn)
	require.NoError(t, err)
	_, err = files.FindDescriptorByName("grpc.reflection.v1alpha.ServerReflection")
	require.NoError(t, err)
}
