package contracts

// Tuple components shared by the workflow contracts.
const (
	ipMetadataComponents = `[
      {"name":"ipMetadataURI","type":"string"},
      {"name":"ipMetadataHash","type":"bytes32"},
      {"name":"nftMetadataURI","type":"string"},
      {"name":"nftMetadataHash","type":"bytes32"}]`

	signatureDataComponents = `[
      {"name":"signer","type":"address"},
      {"name":"deadline","type":"uint256"},
      {"name":"signature","type":"bytes"}]`

	makeDerivativeComponents = `[
      {"name":"parentIpIds","type":"address[]"},
      {"name":"licenseTemplate","type":"address"},
      {"name":"licenseTermsIds","type":"uint256[]"},
      {"name":"royaltyContext","type":"bytes"},
      {"name":"maxMintingFee","type":"uint256"},
      {"name":"maxRts","type":"uint32"},
      {"name":"maxRevenueShare","type":"uint32"}]`

	pilTermsComponents = `[
      {"name":"transferable","type":"bool"},
      {"name":"royaltyPolicy","type":"address"},
      {"name":"defaultMintingFee","type":"uint256"},
      {"name":"expiration","type":"uint256"},
      {"name":"commercialUse","type":"bool"},
      {"name":"commercialAttribution","type":"bool"},
      {"name":"commercializerChecker","type":"address"},
      {"name":"commercializerCheckerData","type":"bytes"},
      {"name":"commercialRevShare","type":"uint32"},
      {"name":"commercialRevCeiling","type":"uint256"},
      {"name":"derivativesAllowed","type":"bool"},
      {"name":"derivativesAttribution","type":"bool"},
      {"name":"derivativesApproval","type":"bool"},
      {"name":"derivativesReciprocal","type":"bool"},
      {"name":"derivativeRevCeiling","type":"uint256"},
      {"name":"currency","type":"address"},
      {"name":"uri","type":"string"}]`

	licensingConfigComponents = `[
      {"name":"isSet","type":"bool"},
      {"name":"mintingFee","type":"uint256"},
      {"name":"licensingHook","type":"address"},
      {"name":"hookData","type":"bytes"},
      {"name":"commercialRevShare","type":"uint32"},
      {"name":"disabled","type":"bool"},
      {"name":"expectMinimumGroupRewardShare","type":"uint32"},
      {"name":"expectGroupRewardPool","type":"address"}]`

	licenseTermsDataComponents = `[
      {"name":"terms","type":"tuple","components":` + pilTermsComponents + `},
      {"name":"licensingConfig","type":"tuple","components":` + licensingConfigComponents + `}]`

	royaltyShareComponents = `[
      {"name":"recipient","type":"address"},
      {"name":"percentage","type":"uint32"}]`

	permissionComponents = `[
      {"name":"ipAccount","type":"address"},
      {"name":"signer","type":"address"},
      {"name":"to","type":"address"},
      {"name":"func","type":"bytes4"},
      {"name":"permission","type":"uint8"}]`

	// Workflow contracts inherit an OpenZeppelin style multicall that keeps msg.sender.
	multicallFunction = `
 {"type":"function","name":"multicall","stateMutability":"nonpayable",
  "inputs":[{"name":"data","type":"bytes[]"}],
  "outputs":[{"name":"results","type":"bytes[]"}]}`
)

const RegistrationWorkflowsABI = `[` + multicallFunction + `,
 {"type":"function","name":"mintAndRegisterIp","stateMutability":"nonpayable",
  "inputs":[
    {"name":"spgNftContract","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"allowDuplicates","type":"bool"}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"tokenId","type":"uint256"}]},
 {"type":"function","name":"registerIp","stateMutability":"nonpayable",
  "inputs":[
    {"name":"nftContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"sigMetadata","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[{"name":"ipId","type":"address"}]}]`

const LicenseAttachmentWorkflowsABI = `[` + multicallFunction + `,
 {"type":"function","name":"mintAndRegisterIpAndAttachPILTerms","stateMutability":"nonpayable",
  "inputs":[
    {"name":"spgNftContract","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"licenseTermsData","type":"tuple[]","components":` + licenseTermsDataComponents + `},
    {"name":"allowDuplicates","type":"bool"}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"licenseTermsIds","type":"uint256[]"}]},
 {"type":"function","name":"registerIpAndAttachPILTerms","stateMutability":"nonpayable",
  "inputs":[
    {"name":"nftContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"licenseTermsData","type":"tuple[]","components":` + licenseTermsDataComponents + `},
    {"name":"sigMetadataAndAttachAndConfig","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"licenseTermsIds","type":"uint256[]"}]}]`

const DerivativeWorkflowsABI = `[` + multicallFunction + `,
 {"type":"function","name":"mintAndRegisterIpAndMakeDerivative","stateMutability":"nonpayable",
  "inputs":[
    {"name":"spgNftContract","type":"address"},
    {"name":"derivData","type":"tuple","components":` + makeDerivativeComponents + `},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"recipient","type":"address"},
    {"name":"allowDuplicates","type":"bool"}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"tokenId","type":"uint256"}]},
 {"type":"function","name":"registerIpAndMakeDerivative","stateMutability":"nonpayable",
  "inputs":[
    {"name":"nftContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"derivData","type":"tuple","components":` + makeDerivativeComponents + `},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"sigMetadataAndRegister","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[{"name":"ipId","type":"address"}]}]`

const RoyaltyTokenDistributionWorkflowsABI = `[` + multicallFunction + `,
 {"type":"function","name":"mintAndRegisterIpAndAttachPILTermsAndDistributeRoyaltyTokens","stateMutability":"nonpayable",
  "inputs":[
    {"name":"spgNftContract","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"licenseTermsData","type":"tuple[]","components":` + licenseTermsDataComponents + `},
    {"name":"royaltyShares","type":"tuple[]","components":` + royaltyShareComponents + `},
    {"name":"allowDuplicates","type":"bool"}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"licenseTermsIds","type":"uint256[]"}]},
 {"type":"function","name":"mintAndRegisterIpAndMakeDerivativeAndDistributeRoyaltyTokens","stateMutability":"nonpayable",
  "inputs":[
    {"name":"spgNftContract","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"derivData","type":"tuple","components":` + makeDerivativeComponents + `},
    {"name":"royaltyShares","type":"tuple[]","components":` + royaltyShareComponents + `},
    {"name":"allowDuplicates","type":"bool"}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"tokenId","type":"uint256"}]},
 {"type":"function","name":"registerIpAndAttachPILTermsAndDeployRoyaltyVault","stateMutability":"nonpayable",
  "inputs":[
    {"name":"nftContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"licenseTermsData","type":"tuple[]","components":` + licenseTermsDataComponents + `},
    {"name":"sigMetadataAndAttachAndConfig","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"licenseTermsIds","type":"uint256[]"},{"name":"ipRoyaltyVault","type":"address"}]},
 {"type":"function","name":"registerIpAndMakeDerivativeAndDeployRoyaltyVault","stateMutability":"nonpayable",
  "inputs":[
    {"name":"nftContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"ipMetadata","type":"tuple","components":` + ipMetadataComponents + `},
    {"name":"derivData","type":"tuple","components":` + makeDerivativeComponents + `},
    {"name":"sigMetadataAndRegister","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[{"name":"ipId","type":"address"},{"name":"ipRoyaltyVault","type":"address"}]},
 {"type":"function","name":"distributeRoyaltyTokens","stateMutability":"nonpayable",
  "inputs":[
    {"name":"ipId","type":"address"},
    {"name":"ipRoyaltyVault","type":"address"},
    {"name":"royaltyShares","type":"tuple[]","components":` + royaltyShareComponents + `},
    {"name":"sigApproveRoyaltyTokens","type":"tuple","components":` + signatureDataComponents + `}],
  "outputs":[]}]`

const IPAssetRegistryABI = `[
 {"type":"function","name":"ipId","stateMutability":"view",
  "inputs":[{"name":"chainId","type":"uint256"},{"name":"tokenContract","type":"address"},{"name":"tokenId","type":"uint256"}],
  "outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"isRegistered","stateMutability":"view",
  "inputs":[{"name":"id","type":"address"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"event","name":"IPRegistered","anonymous":false,
  "inputs":[
    {"name":"ipId","type":"address","indexed":false},
    {"name":"chainId","type":"uint256","indexed":true},
    {"name":"tokenContract","type":"address","indexed":true},
    {"name":"tokenId","type":"uint256","indexed":true},
    {"name":"name","type":"string","indexed":false},
    {"name":"uri","type":"string","indexed":false},
    {"name":"registrationDate","type":"uint256","indexed":false}]}]`

const LicenseRegistryABI = `[
 {"type":"function","name":"hasIpAttachedLicenseTerms","stateMutability":"view",
  "inputs":[{"name":"ipId","type":"address"},{"name":"licenseTemplate","type":"address"},{"name":"licenseTermsId","type":"uint256"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getRoyaltyPercent","stateMutability":"view",
  "inputs":[{"name":"ipId","type":"address"},{"name":"licenseTemplate","type":"address"},{"name":"licenseTermsId","type":"uint256"}],
  "outputs":[{"name":"royaltyPercent","type":"uint32"}]}]`

const LicensingModuleABI = `[
 {"type":"function","name":"predictMintingLicenseFee","stateMutability":"view",
  "inputs":[
    {"name":"licensorIpId","type":"address"},
    {"name":"licenseTemplate","type":"address"},
    {"name":"licenseTermsId","type":"uint256"},
    {"name":"amount","type":"uint256"},
    {"name":"receiver","type":"address"},
    {"name":"royaltyContext","type":"bytes"}],
  "outputs":[{"name":"currencyToken","type":"address"},{"name":"tokenAmount","type":"uint256"}]},
 {"type":"function","name":"attachLicenseTerms","stateMutability":"nonpayable",
  "inputs":[{"name":"ipId","type":"address"},{"name":"licenseTemplate","type":"address"},{"name":"licenseTermsId","type":"uint256"}],
  "outputs":[]},
 {"type":"function","name":"setLicensingConfig","stateMutability":"nonpayable",
  "inputs":[
    {"name":"ipId","type":"address"},
    {"name":"licenseTemplate","type":"address"},
    {"name":"licenseTermsId","type":"uint256"},
    {"name":"licensingConfig","type":"tuple","components":` + licensingConfigComponents + `}],
  "outputs":[]},
 {"type":"function","name":"registerDerivative","stateMutability":"nonpayable",
  "inputs":[
    {"name":"childIpId","type":"address"},
    {"name":"parentIpIds","type":"address[]"},
    {"name":"licenseTermsIds","type":"uint256[]"},
    {"name":"licenseTemplate","type":"address"},
    {"name":"royaltyContext","type":"bytes"},
    {"name":"maxMintingFee","type":"uint256"},
    {"name":"maxRts","type":"uint32"},
    {"name":"maxRevenueShare","type":"uint32"}],
  "outputs":[]},
 {"type":"event","name":"LicenseTermsAttached","anonymous":false,
  "inputs":[
    {"name":"caller","type":"address","indexed":true},
    {"name":"ipId","type":"address","indexed":true},
    {"name":"licenseTemplate","type":"address","indexed":false},
    {"name":"licenseTermsId","type":"uint256","indexed":false}]}]`

const PILicenseTemplateABI = `[
 {"type":"function","name":"exists","stateMutability":"view",
  "inputs":[{"name":"licenseTermsId","type":"uint256"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getLicenseTerms","stateMutability":"view",
  "inputs":[{"name":"selectedLicenseTermsId","type":"uint256"}],
  "outputs":[{"name":"terms","type":"tuple","components":` + pilTermsComponents + `}]},
 {"type":"function","name":"getLicenseTermsId","stateMutability":"view",
  "inputs":[{"name":"terms","type":"tuple","components":` + pilTermsComponents + `}],
  "outputs":[{"name":"selectedLicenseTermsId","type":"uint256"}]}]`

const RoyaltyModuleABI = `[
 {"type":"function","name":"isWhitelistedRoyaltyPolicy","stateMutability":"view",
  "inputs":[{"name":"royaltyPolicy","type":"address"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"isWhitelistedRoyaltyToken","stateMutability":"view",
  "inputs":[{"name":"token","type":"address"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"ipRoyaltyVaults","stateMutability":"view",
  "inputs":[{"name":"ipId","type":"address"}],
  "outputs":[{"name":"","type":"address"}]},
 {"type":"event","name":"IpRoyaltyVaultDeployed","anonymous":false,
  "inputs":[
    {"name":"ipId","type":"address","indexed":false},
    {"name":"ipRoyaltyVault","type":"address","indexed":false}]}]`

const CoreMetadataModuleABI = `[
 {"type":"function","name":"setAll","stateMutability":"nonpayable",
  "inputs":[
    {"name":"ipId","type":"address"},
    {"name":"metadataURI","type":"string"},
    {"name":"metadataHash","type":"bytes32"},
    {"name":"nftMetadataHash","type":"bytes32"}],
  "outputs":[]}]`

const AccessControllerABI = `[
 {"type":"function","name":"setTransientBatchPermissions","stateMutability":"nonpayable",
  "inputs":[{"name":"permissions","type":"tuple[]","components":` + permissionComponents + `}],
  "outputs":[]},
 {"type":"function","name":"setTransientPermission","stateMutability":"nonpayable",
  "inputs":[
    {"name":"ipAccount","type":"address"},
    {"name":"signer","type":"address"},
    {"name":"to","type":"address"},
    {"name":"func","type":"bytes4"},
    {"name":"permission","type":"uint8"}],
  "outputs":[]}]`

const IPAccountABI = `[
 {"type":"function","name":"state","stateMutability":"view",
  "inputs":[],
  "outputs":[{"name":"result","type":"bytes32"}]},
 {"type":"function","name":"owner","stateMutability":"view",
  "inputs":[],
  "outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"execute","stateMutability":"payable",
  "inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],
  "outputs":[{"name":"result","type":"bytes"}]},
 {"type":"function","name":"executeWithSig","stateMutability":"payable",
  "inputs":[
    {"name":"to","type":"address"},
    {"name":"value","type":"uint256"},
    {"name":"data","type":"bytes"},
    {"name":"signer","type":"address"},
    {"name":"deadline","type":"uint256"},
    {"name":"signature","type":"bytes"}],
  "outputs":[{"name":"result","type":"bytes"}]}]`

const SPGNFTABI = `[
 {"type":"function","name":"publicMinting","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"mintFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"mintFeeToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"ownerOf","stateMutability":"view",
  "inputs":[{"name":"tokenId","type":"uint256"}],
  "outputs":[{"name":"","type":"address"}]}]`

const ERC20ABI = `[
 {"type":"function","name":"balanceOf","stateMutability":"view",
  "inputs":[{"name":"account","type":"address"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view",
  "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable",
  "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]}]`

const Multicall3ABI = `[
 {"type":"function","name":"aggregate3","stateMutability":"payable",
  "inputs":[{"name":"calls","type":"tuple[]","components":[
    {"name":"target","type":"address"},
    {"name":"allowFailure","type":"bool"},
    {"name":"callData","type":"bytes"}]}],
  "outputs":[{"name":"returnData","type":"tuple[]","components":[
    {"name":"success","type":"bool"},
    {"name":"returnData","type":"bytes"}]}]}]`

const TotalLicenseTokenLimitHookABI = `[
 {"type":"function","name":"setTotalLicenseTokenLimit","stateMutability":"nonpayable",
  "inputs":[
    {"name":"licensorIpId","type":"address"},
    {"name":"licenseTemplate","type":"address"},
    {"name":"licenseTermsId","type":"uint256"},
    {"name":"limit","type":"uint256"}],
  "outputs":[]}]`

// Custom errors surfaced in revert data by the protocol contracts.
const ProtocolErrorsABI = `[
 {"type":"error","name":"IPAssetRegistry__AlreadyRegistered","inputs":[]},
 {"type":"error","name":"LicenseRegistry__ParentIpHasNoLicenseTerms","inputs":[{"name":"ipId","type":"address"},{"name":"licenseTermsId","type":"uint256"}]},
 {"type":"error","name":"LicensingModule__LicenseTokenLimitExceeded","inputs":[]},
 {"type":"error","name":"LicenseRegistry__ParentIpUnmatchedLicenseTemplate","inputs":[{"name":"ipId","type":"address"},{"name":"licenseTemplate","type":"address"}]},
 {"type":"error","name":"RoyaltyModule__AboveMaxPercent","inputs":[]},
 {"type":"error","name":"SPGNFT__MintingDenied","inputs":[]},
 {"type":"error","name":"SPGNFT__DuplicatedNFTMetadataHash","inputs":[{"name":"spgNftContract","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"nftMetadataHash","type":"bytes32"}]},
 {"type":"error","name":"Workflow__CallerNotAuthorizedToMint","inputs":[]},
 {"type":"error","name":"IPAccount__InvalidSignature","inputs":[]},
 {"type":"error","name":"IPAccount__ExpiredSignature","inputs":[]},
 {"type":"error","name":"LicenseToken__TotalLicenseTokenLimitExceeded","inputs":[]},
 {"type":"error","name":"ERC20InsufficientAllowance","inputs":[{"name":"spender","type":"address"},{"name":"allowance","type":"uint256"},{"name":"needed","type":"uint256"}]},
 {"type":"error","name":"ERC20InsufficientBalance","inputs":[{"name":"sender","type":"address"},{"name":"balance","type":"uint256"},{"name":"needed","type":"uint256"}]},
 {"type":"error","name":"AccessController__PermissionDenied","inputs":[{"name":"ipAccount","type":"address"},{"name":"signer","type":"address"},{"name":"to","type":"address"},{"name":"func","type":"bytes4"}]}]`
