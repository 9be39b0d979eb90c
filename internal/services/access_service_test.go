package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatekit/internal/common"
	"gatekit/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type AccessServiceTestSuite struct {
	suite.Suite
	hierarchyRepo    *MockPermissionHierarchyRepository
	subscriptionRepo *MockModuleSubscriptionRepository
	cacheSvc         *MockCacheService
	service          AccessService
	tenantID         uuid.UUID
}

func (suite *AccessServiceTestSuite) SetupTest() {
	suite.hierarchyRepo = &MockPermissionHierarchyRepository{}
	suite.subscriptionRepo = &MockModuleSubscriptionRepository{}
	suite.cacheSvc = &MockCacheService{}
	suite.service = NewAccessService(suite.hierarchyRepo, suite.subscriptionRepo, suite.cacheSvc, 2*time.Second)
	suite.tenantID = uuid.New()

	suite.hierarchyRepo.Test(suite.T())
	suite.subscriptionRepo.Test(suite.T())
	suite.cacheSvc.Test(suite.T())
}

func (suite *AccessServiceTestSuite) TearDownTest() {
	suite.hierarchyRepo.AssertExpectations(suite.T())
	suite.subscriptionRepo.AssertExpectations(suite.T())
	suite.cacheSvc.AssertExpectations(suite.T())
}

func TestAccessServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceTestSuite))
}

func (suite *AccessServiceTestSuite) principal(role string, perms ...string) *models.Principal {
	return &models.Principal{
		UserID:      uuid.New(),
		Email:       "user@tenant-a.example",
		Role:        role,
		TenantID:    &suite.tenantID,
		Permissions: perms,
	}
}

func (suite *AccessServiceTestSuite) expectSubscription(module, status string) {
	suite.cacheSvc.On("GetSubscriptionStatus", mock.Anything, suite.tenantID, module).Return(status, true, nil)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_ExactGrant() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionActive)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "view", "wms", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_ManageSuperset() {
	principal := suite.principal(models.RoleModuleAdmin, "wms.inventory.manage")
	suite.expectSubscription("wms", models.SubscriptionActive)

	for _, action := range []string{"view", "create", "edit", "delete", "export"} {
		appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", action, "wms", true)
		assert.Nil(suite.T(), appErr, "manage should satisfy %s", action)
	}
}

func (suite *AccessServiceTestSuite) TestRequirePermission_MissingGrantDenies() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("", nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "delete", "wms", true)
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), common.KindAuthorizationError, appErr.Kind)
	assert.Equal(suite.T(), "inventory", appErr.Resource)
	assert.Equal(suite.T(), "delete", appErr.Action)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_SuperAdminBypass() {
	principal := suite.principal(models.RoleSuperAdmin)
	principal.TenantID = nil

	// No subscription or hierarchy lookups happen on the bypass path.
	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "delete", "wms", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_SuperAdminBypassDisabled() {
	principal := suite.principal(models.RoleSuperAdmin)
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("", nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "delete", "wms", false)
	assert.NotNil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_InactiveSubscriptionDenies() {
	// A matching grant does not override a lapsed module subscription.
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionInactive)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "view", "wms", true)
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), common.KindAuthorizationError, appErr.Kind)
	assert.Equal(suite.T(), "wms", appErr.Module)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_SubscriptionCacheMiss() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.cacheSvc.On("GetSubscriptionStatus", mock.Anything, suite.tenantID, "wms").Return("", false, nil)
	suite.subscriptionRepo.On("GetStatus", mock.Anything, suite.tenantID, "wms").Return(models.SubscriptionActive, nil)
	suite.cacheSvc.On("SetSubscriptionStatus", mock.Anything, suite.tenantID, "wms", models.SubscriptionActive, mock.Anything).Return(nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "view", "wms", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_SubscriptionStoreErrorFailsClosed() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.cacheSvc.On("GetSubscriptionStatus", mock.Anything, suite.tenantID, "wms").Return("", false, nil)
	suite.subscriptionRepo.On("GetStatus", mock.Anything, suite.tenantID, "wms").Return("", errors.New("connection refused"))

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "view", "wms", true)
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), common.KindInternalError, appErr.Kind)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_DeclaredParentGrant() {
	// Holding the parent resource's grant satisfies the child's check.
	principal := suite.principal(models.RoleUser, "wms.warehouse.view")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("warehouse", nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "view", "wms", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_DeclaredParentManage() {
	principal := suite.principal(models.RoleUser, "wms.warehouse.manage")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("warehouse", nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "inventory", "edit", "wms", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequirePermission_UnqualifiedResource() {
	// A module-less check carries the module inside the resource name.
	principal := suite.principal(models.RoleUser, "wms.warehouse.view")
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("warehouse", nil)

	appErr := suite.service.RequirePermission(context.Background(), principal, suite.tenantID, "wms.inventory", "view", "", true)
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireAnyPermission_OneOfSeveral() {
	principal := suite.principal(models.RoleUser, "wms.orders.view")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("", nil)

	appErr := suite.service.RequireAnyPermission(context.Background(), principal, suite.tenantID, []string{"inventory", "orders"}, "view", "wms")
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireAnyPermission_NoneDenies() {
	principal := suite.principal(models.RoleUser)
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("", nil)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "orders").Return("", nil)

	appErr := suite.service.RequireAnyPermission(context.Background(), principal, suite.tenantID, []string{"inventory", "orders"}, "view", "wms")
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), common.KindAuthorizationError, appErr.Kind)
}

func (suite *AccessServiceTestSuite) TestRequireHierarchicalPermission_ParentAllows() {
	principal := suite.principal(models.RoleUser, "wms.warehouse.view")
	suite.expectSubscription("wms", models.SubscriptionActive)

	appErr := suite.service.RequireHierarchicalPermission(context.Background(), principal, suite.tenantID, "warehouse", "inventory", "view", "wms")
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireHierarchicalPermission_ChildAloneAllows() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "warehouse").Return("", nil)

	appErr := suite.service.RequireHierarchicalPermission(context.Background(), principal, suite.tenantID, "warehouse", "inventory", "view", "wms")
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireHierarchicalPermission_NeitherDenies() {
	principal := suite.principal(models.RoleUser, "pos.sales.view")
	suite.expectSubscription("wms", models.SubscriptionActive)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "warehouse").Return("", nil)
	suite.hierarchyRepo.On("ParentOf", mock.Anything, "wms", "inventory").Return("warehouse", nil)

	appErr := suite.service.RequireHierarchicalPermission(context.Background(), principal, suite.tenantID, "warehouse", "inventory", "view", "wms")
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), common.KindAuthorizationError, appErr.Kind)
	assert.Equal(suite.T(), "inventory", appErr.Resource)
}

func (suite *AccessServiceTestSuite) TestRequireModuleAccess_Allows() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionActive)

	appErr := suite.service.RequireModuleAccess(context.Background(), principal, suite.tenantID, "wms")
	assert.Nil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireModuleAccess_NoModulePermissions() {
	principal := suite.principal(models.RoleUser, "pos.sales.view")
	suite.expectSubscription("wms", models.SubscriptionActive)

	appErr := suite.service.RequireModuleAccess(context.Background(), principal, suite.tenantID, "wms")
	assert.NotNil(suite.T(), appErr)
	assert.Equal(suite.T(), "wms", appErr.Module)
}

func (suite *AccessServiceTestSuite) TestRequireModuleAccess_SuspendedSubscription() {
	principal := suite.principal(models.RoleUser, "wms.inventory.view")
	suite.expectSubscription("wms", models.SubscriptionSuspended)

	appErr := suite.service.RequireModuleAccess(context.Background(), principal, suite.tenantID, "wms")
	assert.NotNil(suite.T(), appErr)
}

func (suite *AccessServiceTestSuite) TestRequireModuleAccess_SuperAdminExempt() {
	principal := suite.principal(models.RoleSuperAdmin)
	principal.TenantID = nil

	appErr := suite.service.RequireModuleAccess(context.Background(), principal, suite.tenantID, "wms")
	assert.Nil(suite.T(), appErr)
}
