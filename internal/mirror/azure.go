package mirror

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// blobUploader is the part of *azblob.Client the sink uses.
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureSink writes blobs to a container under a prefix.
type AzureSink struct {
	client    blobUploader
	account   string
	container string
	prefix    string
}

// NewAzureSink authenticates with a SAS token when one is set, otherwise
// with the shared account key.
func NewAzureSink(container, prefix string, opts Options, httpClient *nethttp.Client) (*AzureSink, error) {
	if opts.AzureAccountURL == "" {
		return nil, ErrAzureNoAccount
	}
	accountURL := strings.TrimSuffix(opts.AzureAccountURL, "/")

	clientOpts := &azblob.ClientOptions{}
	if httpClient != nil {
		clientOpts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case opts.AzureSASToken != "":
		sasURL := accountURL + "/?" + strings.TrimPrefix(opts.AzureSASToken, "?")
		client, err = azblob.NewClientWithNoCredential(sasURL, clientOpts)
	case opts.AzureAccountName != "" && opts.AzureAccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(opts.AzureAccountName, opts.AzureAccountKey)
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(accountURL+"/", cred, clientOpts)
		}
	default:
		return nil, fmt.Errorf("azblob destination needs AZURE_STORAGE_SAS_TOKEN or AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureSink{client: client, account: accountURL, container: container, prefix: prefix}, nil
}

func (a *AzureSink) String() string {
	if a.prefix == "" {
		return "azblob://" + a.container
	}
	return "azblob://" + a.container + "/" + a.prefix
}

// Put uploads data as a block blob.
func (a *AzureSink) Put(ctx context.Context, key string, data []byte) error {
	blobName, err := objectKey(a.prefix, key)
	if err != nil {
		return err
	}

	if _, err := a.client.UploadBuffer(ctx, a.container, blobName, data, nil); err != nil {
		return fmt.Errorf("failed to upload %s to container %s: %w", blobName, a.container, err)
	}
	return nil
}
